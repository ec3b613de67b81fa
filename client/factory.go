package client

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-hclog"

	"flock/dataset"
)

// ClientFunc maps an orchestrator-assigned client id to a client instance.
// The orchestrator calls it each time the cid-th client is told to
// participate in a round.
type ClientFunc func(cid string) (*Client, error)

// NewClientFunc returns a factory that binds cid i to the i-th data
// partition and a freshly built model. newModel runs once per spawned
// client, so every client starts from its own initialization until the
// first round's global weights arrive.
func NewClientFunc(newModel func() LocalModel, parts []*dataset.Partition, defaults Defaults, logger hclog.Logger) ClientFunc {
	return func(cid string) (*Client, error) {
		idx, err := strconv.Atoi(cid)
		if err != nil {
			return nil, fmt.Errorf("client: cid %q is not an index: %w", cid, err)
		}
		if idx < 0 || idx >= len(parts) {
			return nil, fmt.Errorf("client: cid %d out of range [0, %d)", idx, len(parts))
		}
		return New(cid, newModel(), parts[idx], defaults, logger), nil
	}
}
