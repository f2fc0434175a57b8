package control

import (
	"fmt"
	"os"
	"os/user"

	"google.golang.org/protobuf/types/known/structpb"
)

// Actor identifies who issued a control request, for the audit log.
type Actor struct {
	Hostname string
	Username string
}

// DetectActor gathers host and user information for the audit trail.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

func actorToStruct(a *Actor) *structpb.Value {
	if a == nil {
		return structpb.NewNullValue()
	}

	return structpb.NewStructValue(object(map[string]*structpb.Value{
		fieldHostname: str(a.Hostname),
		fieldUsername: str(a.Username),
	}))
}

func actorFromStruct(s *structpb.Struct) *Actor {
	if s == nil {
		return nil
	}

	a := &Actor{
		Hostname: stringField(s, fieldHostname),
		Username: stringField(s, fieldUsername),
	}

	if a.Hostname == "" && a.Username == "" {
		return nil
	}

	return a
}
