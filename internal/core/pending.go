package core

import "animcore/pkg/animation"

// pendingChanges coalesces the storage commands produced while applying one
// published batch. Repeated writes to the same element collapse into a single
// WriteElement carrying the most recent value. Element writes are emitted
// before all structural commands so that anything a structural command
// references already exists; edit log appends come last. Structural commands
// keep their relative order.
type pendingChanges struct {
	elementOrder []int64
	elements     map[int64]string
	structural   []animation.StorageCommand
	logLines     []string
}

func newPendingChanges() *pendingChanges {
	return &pendingChanges{elements: make(map[int64]string)}
}

// writeElement records (or supersedes) a pending element write.
func (p *pendingChanges) writeElement(id int64, serialized string) {
	if _, ok := p.elements[id]; !ok {
		p.elementOrder = append(p.elementOrder, id)
	}
	p.elements[id] = serialized
}

// structuralCommand appends a non-element-write command.
func (p *pendingChanges) structuralCommand(cmd animation.StorageCommand) {
	p.structural = append(p.structural, cmd)
}

// deleteElement records an element deletion, discarding any pending write for
// the same element.
func (p *pendingChanges) deleteElement(id int64) {
	if _, ok := p.elements[id]; ok {
		delete(p.elements, id)
		for i, pending := range p.elementOrder {
			if pending == id {
				p.elementOrder = append(p.elementOrder[:i], p.elementOrder[i+1:]...)
				break
			}
		}
	}
	p.structural = append(p.structural, animation.StorageCommand{
		Kind:      animation.CmdDeleteElement,
		ElementID: id,
	})
}

// appendEdit records one serialized line for the edit log.
func (p *pendingChanges) appendEdit(line string) {
	p.logLines = append(p.logLines, line)
}

func (p *pendingChanges) empty() bool {
	return len(p.elements) == 0 && len(p.structural) == 0 && len(p.logLines) == 0
}

// commands flattens the pending changes into an ordered command batch.
func (p *pendingChanges) commands() []animation.StorageCommand {
	out := make([]animation.StorageCommand, 0, len(p.elementOrder)+len(p.structural)+len(p.logLines))
	for _, id := range p.elementOrder {
		out = append(out, animation.StorageCommand{
			Kind:       animation.CmdWriteElement,
			ElementID:  id,
			Serialized: p.elements[id],
		})
	}
	out = append(out, p.structural...)
	for _, line := range p.logLines {
		out = append(out, animation.StorageCommand{
			Kind:       animation.CmdWriteEdit,
			Serialized: line,
		})
	}
	return out
}
