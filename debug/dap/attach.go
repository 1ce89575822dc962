package dap

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"

	"github.com/xhd2015/dlv-connect/debug/connect"
)

// AttachArguments are the attach request arguments this adapter reads.
// Connect is a pointer so that a missing locator is told apart from "".
type AttachArguments struct {
	Connect  *string `json:"connect"`
	Encoding string  `json:"encoding,omitempty"`
}

// ParseAttachArguments decodes the arguments of an attach request
func ParseAttachArguments(req *dap.AttachRequest) (AttachArguments, error) {
	var args AttachArguments
	if len(req.Arguments) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return args, fmt.Errorf("invalid attach arguments: %w", err)
	}
	return args, nil
}

// CreateFromAttach creates connect options from an attach request. A missing
// "connect" argument fails with connect.ErrInvalidArgument.
func CreateFromAttach(factory *connect.Factory, req *dap.AttachRequest) (*connect.ConnectionOptions, error) {
	args, err := ParseAttachArguments(req)
	if err != nil {
		return nil, err
	}

	f := factory
	if args.Encoding != "" {
		bridge, err := connect.BridgeByName(args.Encoding)
		if err != nil {
			return nil, err
		}
		f = factory.ForBridge(bridge)
	}
	return f.Create(args.Connect)
}
