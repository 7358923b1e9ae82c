package workflow

import "fmt"

// validateAcyclic checks that the dependency edges form a DAG.
// deps maps a node to the nodes it depends on.
func validateAcyclic(deps map[string][]string) error {
	// Visit state: 0=unvisited, 1=visiting (in stack), 2=visited
	state := make(map[string]int)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if state[name] == 2 {
			return nil
		}
		if state[name] == 1 {
			cyclePath := append(path, name)
			return fmt.Errorf("dependency cycle detected: %v", cyclePath)
		}

		state[name] = 1
		for _, dep := range deps[name] {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = 2
		return nil
	}

	for name := range deps {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// topologicalOrder returns ids in dependency order using Kahn's algorithm.
// ids supplies a stable iteration order; nodes left out of the result are
// part of a cycle.
func topologicalOrder(ids []string, deps map[string][]string) []string {
	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = len(deps[id])
	}

	dependents := make(map[string][]string)
	for _, id := range ids {
		for _, dep := range deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var result []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return result
}
