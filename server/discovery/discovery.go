// Package discovery defines the remote-identity discovery collaborator: an
// external lookup that turns a handle into a public key and profile. The
// wire protocol belongs to the implementations; the resolver only sees this
// interface.
package discovery

import (
	"context"
	"encoding/json"
	"errors"

	t "github.com/seednode/pod/server/store/types"
)

// ErrNotFound means the handle could not be discovered. Any transport or
// protocol failure is reported as a plain error; the resolver treats every
// non-success the same way.
var ErrNotFound = errors.New("discovery: handle not found")

// Result is a successfully discovered remote identity.
type Result struct {
	// Canonical handle as reported by the remote node.
	Handle string
	// PEM-encoded RSA public key.
	PubKey string
	// Optional displayable profile.
	Profile *t.Profile
}

// Service is implemented by discovery backends.
type Service interface {
	// Init initializes the backend.
	Init(jsonconf json.RawMessage) error

	// Discover fetches the identity behind the handle. May be slow; honors
	// the context deadline.
	Discover(ctx context.Context, handle string) (*Result, error)
}

var services map[string]Service

// Register a discovery backend by name.
func Register(name string, svc Service) {
	if services == nil {
		services = make(map[string]Service)
	}

	if svc == nil {
		panic("discovery: Register service is nil")
	}
	if _, dup := services[name]; dup {
		panic("discovery: Register called twice for service " + name)
	}
	services[name] = svc
}

type configType struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// Init selects and initializes the configured backend.
func Init(jsconfig json.RawMessage) (Service, error) {
	var config configType
	if err := json.Unmarshal(jsconfig, &config); err != nil {
		return nil, errors.New("discovery: failed to parse config: " + err.Error())
	}

	svc := services[config.Name]
	if svc == nil {
		return nil, errors.New("discovery: service '" + config.Name + "' is not available in this binary")
	}
	if err := svc.Init(config.Config); err != nil {
		return nil, err
	}
	return svc, nil
}
