package stream

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// Registry names running joins for inspection.
type Registry interface {
	Register(name string, join *TimeBoundedStreamJoin) error
	Join(name string) (*TimeBoundedStreamJoin, error)
	List() []string
}

type registry struct {
	joins  map[string]*TimeBoundedStreamJoin
	mu     *sync.Mutex
	logger log.Logger
}

type RegistryConfig struct {
	Host        string
	HttpEnabled bool
	Logger      log.Logger
}

func NewRegistry(config *RegistryConfig) Registry {
	if config.Logger == nil {
		config.Logger = log.NewNoopLogger()
	}

	reg := &registry{
		joins:  make(map[string]*TimeBoundedStreamJoin),
		mu:     &sync.Mutex{},
		logger: config.Logger.NewLog(log.Prefixed(`join-registry`)),
	}

	if config.HttpEnabled {
		MakeEndpoints(config.Host, reg, reg.logger.NewLog(log.Prefixed(`http`)))
	}

	return reg
}

func (r *registry) Register(name string, join *TimeBoundedStreamJoin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.joins[name]; ok {
		return errors.New(fmt.Sprintf(`join [%s] already exist`, name))
	}

	r.joins[name] = join
	r.logger.Debug(fmt.Sprintf(`join [%s] registered`, name))

	return nil
}

func (r *registry) Join(name string) (*TimeBoundedStreamJoin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.joins[name]
	if !ok {
		return nil, errors.New(fmt.Sprintf(`unknown join [%s]`, name))
	}

	return j, nil
}

func (r *registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []string
	for name := range r.joins {
		list = append(list, name)
	}
	sort.Strings(list)

	return list
}
