package debug

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/xhd2015/dlv-connect/debug/common"
	"github.com/xhd2015/dlv-connect/debug/connect"
)

// ErrOptionsNotFound is returned for unknown options ids
var ErrOptionsNotFound = errors.New("connect options not found")

// OptionsManager keeps connect options created for later use, keyed by id
type OptionsManager struct {
	factory *connect.Factory
	options map[string]*connect.ConnectionOptions
	mu      sync.Mutex
}

// NewOptionsManager creates a manager that constructs through factory
func NewOptionsManager(factory *connect.Factory) *OptionsManager {
	return &OptionsManager{
		factory: factory,
		options: make(map[string]*connect.ConnectionOptions),
	}
}

// Factory returns the underlying factory
func (m *OptionsManager) Factory() *connect.Factory {
	return m.factory
}

// Create constructs connect options and stores them under a new id
func (m *OptionsManager) Create(locator *string) (*common.OptionsInfo, error) {
	return m.CreateWith(m.factory, locator)
}

// CreateWith is Create with a different factory, e.g. one bridging to
// another encoding
func (m *OptionsManager) CreateWith(factory *connect.Factory, locator *string) (*common.OptionsInfo, error) {
	opts, err := factory.Create(locator)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("options-%s", uuid.NewString())

	m.mu.Lock()
	m.options[id] = opts
	m.mu.Unlock()

	return m.info(id, opts), nil
}

// Get returns stored connect options by id
func (m *OptionsManager) Get(id string) (*connect.ConnectionOptions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opts, ok := m.options[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOptionsNotFound, id)
	}
	return opts, nil
}

// Release closes and forgets stored connect options
func (m *OptionsManager) Release(id string) error {
	m.mu.Lock()
	opts, ok := m.options[id]
	delete(m.options, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrOptionsNotFound, id)
	}
	return opts.Close()
}

// List returns stored connect options ordered by id
func (m *OptionsManager) List() []*common.OptionsInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*common.OptionsInfo, 0, len(m.options))
	for id, opts := range m.options {
		result = append(result, m.info(id, opts))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Close releases every stored connect options value
func (m *OptionsManager) Close() error {
	m.mu.Lock()
	all := m.options
	m.options = make(map[string]*connect.ConnectionOptions)
	m.mu.Unlock()

	var errs []error
	for _, opts := range all {
		if err := opts.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *OptionsManager) info(id string, opts *connect.ConnectionOptions) *common.OptionsInfo {
	url, err := opts.URL()
	if err != nil {
		url = opts.Locator()
	}
	return &common.OptionsInfo{
		ID:       id,
		URL:      url,
		Backend:  opts.Backend(),
		Consumed: opts.Consumed(),
	}
}
