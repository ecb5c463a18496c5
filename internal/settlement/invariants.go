package settlement

import "fmt"

// ValidateInvariants checks the universal structural and numeric
// invariants the engine must never violate, returning the first
// violation found or nil if the current state is consistent.
func (e *Engine) ValidateInvariants() error {
	seenID := make(map[int]bool, len(e.nodes))
	for i, n := range e.nodes {
		if seenID[n.ID] {
			return fmt.Errorf("duplicate node id %d at index %d", n.ID, i)
		}
		seenID[n.ID] = true

		if n.Population < 0 {
			return fmt.Errorf("node %d has negative population %.4f", n.ID, n.Population)
		}
		if n.CarryingCapacity < 0 {
			return fmt.Errorf("node %d has negative carrying capacity %.4f", n.ID, n.CarryingCapacity)
		}
		if n.FieldX < 0 || n.FieldY < 0 || n.FieldX >= e.fieldW || n.FieldY >= e.fieldH {
			return fmt.Errorf("node %d placed outside field grid at (%d,%d)", n.ID, n.FieldX, n.FieldY)
		}
		if !e.fieldIsLandAt(n.FieldX, n.FieldY) {
			return fmt.Errorf("node %d placed on non-land field (%d,%d)", n.ID, n.FieldX, n.FieldY)
		}

		sum := 0.0
		for m := 0; m < ModeCount; m++ {
			if n.Mix[m] < 0 {
				return fmt.Errorf("node %d has negative mix component %d: %.4f", n.ID, m, n.Mix[m])
			}
			sum += n.Mix[m]
		}
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("node %d subsistence mix does not sum to 1: %.6f", n.ID, sum)
		}

		prevID := -1
		for _, pid := range n.AdoptedPackages {
			if pid <= prevID {
				return fmt.Errorf("node %d adopted-packages not sorted/duplicate-free at package %d", n.ID, pid)
			}
			prevID = pid
		}
	}

	for i, st := range e.states {
		if st.S < -1e-6 || st.I < -1e-6 || st.R < -1e-6 {
			return fmt.Errorf("node index %d has negative SIR component S=%.6f I=%.6f R=%.6f", i, st.S, st.I, st.R)
		}
		total := st.S + st.I + st.R
		if total > 1e-9 && (total < 0.98 || total > 1.02) {
			return fmt.Errorf("node index %d SIR does not sum to 1: %.6f", i, total)
		}
	}

	seenEdge := make(map[uint64]bool, len(e.edges))
	for _, edge := range e.edges {
		if edge.FromNode < 0 || edge.FromNode >= len(e.nodes) || edge.ToNode < 0 || edge.ToNode >= len(e.nodes) {
			return fmt.Errorf("edge references out-of-range node %d-%d", edge.FromNode, edge.ToNode)
		}
		if edge.FromNode == edge.ToNode {
			return fmt.Errorf("self-loop edge on node %d", edge.FromNode)
		}
		lo, hi := edge.FromNode, edge.ToNode
		if lo > hi {
			lo, hi = hi, lo
		}
		key := packKey(lo, hi)
		if seenEdge[key] {
			return fmt.Errorf("duplicate undirected edge %d-%d", edge.FromNode, edge.ToNode)
		}
		seenEdge[key] = true
		if edge.Cost < 0 {
			return fmt.Errorf("edge %d-%d has negative cost %.4f", edge.FromNode, edge.ToNode, edge.Cost)
		}
		if edge.Reliability < 0 || edge.Reliability > 1 {
			return fmt.Errorf("edge %d-%d reliability out of range: %.4f", edge.FromNode, edge.ToNode, edge.Reliability)
		}
	}

	if e.lastFissionConservationError > 1e-3 {
		return fmt.Errorf("fission conservation error %.6f exceeds 1e-3", e.lastFissionConservationError)
	}

	if len(e.tradeHintMatrix) > 0 {
		for _, v := range e.tradeHintMatrix {
			if v < 0 || v > 1 {
				return fmt.Errorf("trade hint matrix entry out of [0,1] range: %.4f", v)
			}
		}
	}

	return nil
}
