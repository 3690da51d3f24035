package graph

import (
	"fmt"

	"github.com/flownetio/flownet/pkg/record"
	"github.com/flownetio/flownet/pkg/store"
)

// Block operations all go through UpdateNode on the owning branch, replacing
// its block slice immutably. Indices shift on insert/remove; callers holding
// a (branchID, index) address must re-resolve after a structural edit.

// branchBlocksUpdate validates the branch and applies fn to a fresh copy of
// its block slice. The graph is unchanged when fn reports an error.
func (n *Network) branchBlocksUpdate(branchID string, fn func(blocks []Block) ([]Block, error)) (*store.Flush, error) {
	node, ok := n.nodes.Get(branchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, branchID)
	}
	if node.Kind != KindBranch {
		return nil, fmt.Errorf("%w: %s", ErrNotABranch, branchID)
	}

	current := make([]Block, len(node.Blocks))
	for i, b := range node.Blocks {
		current[i] = b.Clone()
	}
	replaced, err := fn(current)
	if err != nil {
		return nil, err
	}

	return n.UpdateNode(branchID, func(node Node) Node {
		node.Blocks = replaced
		return node
	})
}

// AddBlock inserts a block at index; index == len appends. A zero quantity
// is defaulted to 1.
func (n *Network) AddBlock(branchID string, index int, block Block) (*store.Flush, error) {
	return n.branchBlocksUpdate(branchID, func(blocks []Block) ([]Block, error) {
		if index < 0 || index > len(blocks) {
			return nil, fmt.Errorf("%w: insert at %d of %d", ErrIndexOutOfRange, index, len(blocks))
		}
		if block.Quantity == 0 {
			block.Quantity = 1
		}
		if block.Quantity < 1 {
			return nil, fmt.Errorf("block quantity must be >= 1, got %d", block.Quantity)
		}
		if block.Props == nil {
			block.Props = record.NewProperties()
		}
		out := make([]Block, 0, len(blocks)+1)
		out = append(out, blocks[:index]...)
		out = append(out, block.Clone())
		out = append(out, blocks[index:]...)
		return out, nil
	})
}

// UpdateBlock applies a mutator to the block at index. The block type is
// immutable; changes to it are discarded.
func (n *Network) UpdateBlock(branchID string, index int, mutate func(Block) Block) (*store.Flush, error) {
	return n.branchBlocksUpdate(branchID, func(blocks []Block) ([]Block, error) {
		if index < 0 || index >= len(blocks) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(blocks))
		}
		updated := mutate(blocks[index].Clone())
		updated.Type = blocks[index].Type
		if updated.Quantity < 1 {
			return nil, fmt.Errorf("block quantity must be >= 1, got %d", updated.Quantity)
		}
		if updated.Props == nil {
			updated.Props = record.NewProperties()
		}
		blocks[index] = updated
		return blocks, nil
	})
}

// RemoveBlock deletes the block at index, shifting later indices down
func (n *Network) RemoveBlock(branchID string, index int) (*store.Flush, error) {
	return n.branchBlocksUpdate(branchID, func(blocks []Block) ([]Block, error) {
		if index < 0 || index >= len(blocks) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(blocks))
		}
		return append(blocks[:index], blocks[index+1:]...), nil
	})
}

// MoveBlock moves the block at fromIndex to toIndex, shifting the blocks in
// between
func (n *Network) MoveBlock(branchID string, fromIndex, toIndex int) (*store.Flush, error) {
	return n.branchBlocksUpdate(branchID, func(blocks []Block) ([]Block, error) {
		if fromIndex < 0 || fromIndex >= len(blocks) {
			return nil, fmt.Errorf("%w: from %d of %d", ErrIndexOutOfRange, fromIndex, len(blocks))
		}
		if toIndex < 0 || toIndex >= len(blocks) {
			return nil, fmt.Errorf("%w: to %d of %d", ErrIndexOutOfRange, toIndex, len(blocks))
		}
		moved := blocks[fromIndex]
		rest := append(blocks[:fromIndex], blocks[fromIndex+1:]...)
		out := make([]Block, 0, len(blocks))
		out = append(out, rest[:toIndex]...)
		out = append(out, moved)
		out = append(out, rest[toIndex:]...)
		return out, nil
	})
}

// Block returns a copy of the block at (branchID, index)
func (n *Network) Block(branchID string, index int) (Block, error) {
	node, ok := n.nodes.Get(branchID)
	if !ok {
		return Block{}, fmt.Errorf("%w: %s", ErrNodeNotFound, branchID)
	}
	if node.Kind != KindBranch {
		return Block{}, fmt.Errorf("%w: %s", ErrNotABranch, branchID)
	}
	if index < 0 || index >= len(node.Blocks) {
		return Block{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(node.Blocks))
	}
	return node.Blocks[index].Clone(), nil
}
