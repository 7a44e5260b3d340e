package cluster

import (
	"fmt"
	"regexp"
	"strings"
)

// nodeIDPattern is spec §6's "Node identifier" regex, case sensitive.
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+@[A-Za-z0-9_.-]+:[0-9]{1,5}$`)

// InvalidNodeIDError is spec §7's InvalidNodeIdError.
type InvalidNodeIDError struct {
	ID string
}

func (e *InvalidNodeIDError) Error() string {
	return fmt.Sprintf("cluster: invalid node id %q", e.ID)
}

// ValidateNodeID checks id against spec §6's `name@host:port` pattern.
func ValidateNodeID(id string) error {
	if !nodeIDPattern.MatchString(id) {
		return &InvalidNodeIDError{ID: id}
	}
	return nil
}

// addrFromNodeID extracts the dialable `host:port` portion of a
// `name@host:port` node id.
func addrFromNodeID(id string) (string, error) {
	if err := ValidateNodeID(id); err != nil {
		return "", err
	}
	_, addr, _ := strings.Cut(id, "@")
	return addr, nil
}
