package stream

import "encoding/json"

// NodeStatus is the lifecycle state of a workflow node.
type NodeStatus string

const (
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeError     NodeStatus = "error"
)

// IsTerminal reports whether the status admits no further transitions.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeCompleted || s == NodeError
}

// NodeResult represents the latest known state of one workflow node.
type NodeResult struct {
	NodeID    string
	Status    NodeStatus
	Iteration int
	Data      json.RawMessage
	Error     string
}

// ResultRegistry maps node ids to their latest result. Upserts are
// idempotent and monotonic: a node that reached a terminal status never
// regresses to running from a late or duplicate event.
type ResultRegistry struct {
	nodes map[string]*NodeResult
	order []string
}

func newResultRegistry() *ResultRegistry {
	return &ResultRegistry{nodes: make(map[string]*NodeResult)}
}

// Upsert folds one node_result payload into the registry. The effective
// status is resolved before storing:
//
//   - an error always wins, regardless of the reported status
//   - a running marker from a prior iteration is stale and upgrades to
//     completed (it never received an explicit terminal event)
//   - a running marker with the completed flag set upgrades to completed
//
// Any completed upsert additionally sweeps every other node still marked
// running to completed. The server does not always close out superseded
// running nodes individually; this compensates. The sweep is a heuristic
// and can misfire for legitimately concurrent branches.
func (r *ResultRegistry) Upsert(p *NodeResultPayload, sessionIteration int) *NodeResult {
	iteration := sessionIteration
	if p.Iteration != nil {
		iteration = *p.Iteration
	}

	status := resolveNodeStatus(p, iteration, sessionIteration)

	node, ok := r.nodes[p.NodeID]
	if !ok {
		node = &NodeResult{NodeID: p.NodeID}
		r.nodes[p.NodeID] = node
		r.order = append(r.order, p.NodeID)
	} else if node.Status == NodeError && status != NodeError {
		// An errored node is sealed; nothing can resurrect it.
		mergeNodeData(node, p)
		return node
	} else if node.Status.IsTerminal() && status == NodeRunning {
		// Late/duplicate running marker after a terminal status: keep the
		// terminal state, merge data only.
		mergeNodeData(node, p)
		return node
	}

	node.Status = status
	node.Iteration = iteration
	mergeNodeData(node, p)
	if p.Error != "" {
		node.Error = p.Error
	}

	if status == NodeCompleted {
		r.sweepRunning(p.NodeID)
	}
	return node
}

// Get returns the latest result for a node id.
func (r *ResultRegistry) Get(nodeID string) (*NodeResult, bool) {
	node, ok := r.nodes[nodeID]
	return node, ok
}

// Len returns the number of tracked nodes.
func (r *ResultRegistry) Len() int {
	return len(r.nodes)
}

// All returns node results in first-seen order.
func (r *ResultRegistry) All() []*NodeResult {
	out := make([]*NodeResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodes[id])
	}
	return out
}

// SettleRunning marks every node still flagged running as completed.
func (r *ResultRegistry) SettleRunning() {
	for _, node := range r.nodes {
		if node.Status == NodeRunning {
			node.Status = NodeCompleted
		}
	}
}

func (r *ResultRegistry) sweepRunning(except string) {
	for id, node := range r.nodes {
		if id == except {
			continue
		}
		if node.Status == NodeRunning {
			node.Status = NodeCompleted
		}
	}
}

func resolveNodeStatus(p *NodeResultPayload, iteration, sessionIteration int) NodeStatus {
	if p.Error != "" {
		return NodeError
	}
	status := NodeStatus(p.Status)
	if status == NodeRunning {
		if iteration < sessionIteration {
			return NodeCompleted
		}
		if p.Completed {
			return NodeCompleted
		}
	}
	switch status {
	case NodeRunning, NodeCompleted, NodeError:
		return status
	default:
		// Unknown status strings are treated as running until a terminal
		// signal arrives.
		return NodeRunning
	}
}

func mergeNodeData(node *NodeResult, p *NodeResultPayload) {
	if len(p.Data) > 0 {
		node.Data = p.Data
	}
}
