package witness

import (
	"context"
	"errors"
	"sync"

	"github.com/ccoin/warpz/pkg/types"
)

// Errors returned by CommitmentTree.
var (
	ErrTreeFull        = errors.New("witness: commitment tree is full")
	ErrLeafNotFound     = errors.New("witness: leaf not found in tree")
	ErrInvalidPosition  = errors.New("witness: invalid position")
	ErrBridgeMismatch   = errors.New("witness: bridge does not match current frontier")
)

// TreeStore persists one pool's commitment-tree nodes. Storage's
// postgres-backed implementation satisfies it per pool.
type TreeStore interface {
	GetNode(ctx context.Context, level, index uint64) (types.Hash, error)
	SetNode(ctx context.Context, level, index uint64, hash types.Hash) error
	GetRoot(ctx context.Context) (types.Hash, error)
	SetRoot(ctx context.Context, root types.Hash) error
	GetSize(ctx context.Context) (uint64, error)
	SetSize(ctx context.Context, size uint64) error
	// DeleteAbove removes node data for positions >= fromPosition, used by
	// RewindTo after the frontier has been restored to a checkpoint.
	DeleteAbove(ctx context.Context, fromPosition uint64) error
}

// MerklePath is the authentication path from a leaf to the tree root.
type MerklePath struct {
	Siblings     []types.Hash
	PathBits     []bool // true = current node is the right child at that level
	LeafPosition uint64
}

// CommitmentTree is one pool's incremental Merkle tree.
type CommitmentTree struct {
	mu     sync.RWMutex
	pool   types.Pool
	hasher PoolHasher
	store  TreeStore

	frontier Frontier
	root     types.Hash
}

// NewCommitmentTree creates a tree for pool, backed by store.
func NewCommitmentTree(pool types.Pool, store TreeStore) *CommitmentTree {
	return &CommitmentTree{
		pool:   pool,
		hasher: HasherFor(pool),
		store:  store,
	}
}

// Initialize loads persisted frontier/root state, defaulting to an empty
// tree if none exists yet.
func (ct *CommitmentTree) Initialize(ctx context.Context) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	root, err := ct.store.GetRoot(ctx)
	if err != nil {
		ct.root = ct.emptyRoot()
		ct.frontier = Frontier{}
		return nil
	}
	ct.root = root

	size, err := ct.store.GetSize(ctx)
	if err == nil {
		ct.frontier.Size = size
		for level := 0; level < TreeDepth; level++ {
			if (size>>uint(level))&1 == 0 {
				continue
			}
			if h, err := ct.store.GetNode(ctx, uint64(level), (size>>uint(level))-1); err == nil {
				ct.frontier.Level[level] = types.OptLevel{Present: true, Hash: h}
			}
		}
	}
	return nil
}

// AppendLeaf appends one leaf, materializing every node on its path —
// required when the leaf (or a later leaf in the same block) is owned, so
// that GetPath can later reconstruct its authentication path.
func (ct *CommitmentTree) AppendLeaf(ctx context.Context, leaf types.Hash) (uint64, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.appendLeafLocked(ctx, leaf)
}

func (ct *CommitmentTree) appendLeafLocked(ctx context.Context, leaf types.Hash) (uint64, error) {
	maxLeaves := uint64(1) << TreeDepth
	if ct.frontier.Size >= maxLeaves {
		return 0, ErrTreeFull
	}

	position := ct.frontier.Size
	if err := ct.store.SetNode(ctx, 0, position, leaf); err != nil {
		return 0, err
	}

	current := leaf
	index := position
	for level := 0; level < TreeDepth; level++ {
		siblingIndex := index ^ 1
		siblingHash, err := ct.store.GetNode(ctx, uint64(level), siblingIndex)
		if err != nil {
			siblingHash = ct.emptyHash(level)
		}

		var combined types.Hash
		if index%2 == 0 {
			combined = ct.hasher.Combine(level, current, siblingHash)
		} else {
			combined = ct.hasher.Combine(level, siblingHash, current)
		}

		index /= 2
		current = combined
		if err := ct.store.SetNode(ctx, uint64(level+1), index, current); err != nil {
			return 0, err
		}
	}

	newFrontier, _ := appendLeaf(ct.hasher, ct.frontier, leaf)
	ct.frontier = newFrontier
	ct.root = current

	if err := ct.store.SetRoot(ctx, ct.root); err != nil {
		return 0, err
	}
	if err := ct.store.SetSize(ctx, ct.frontier.Size); err != nil {
		return 0, err
	}
	return position, nil
}

// AppendBridge applies a warp-sync bridge to the frontier in O(log n),
// without materializing per-leaf nodes. Only valid when the bridged range
// contains no position the caller will ever need an auth path for — the
// Engine enforces this by only bridging ranges with zero matches from
// TrialDecryptor.
func (ct *CommitmentTree) AppendBridge(ctx context.Context, bridge *Bridge) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	next, ok := applyBridge(ct.frontier, bridge)
	if !ok {
		return ErrBridgeMismatch
	}
	ct.frontier = next
	ct.root = ct.rootFromFrontier(next)

	if err := ct.store.SetRoot(ctx, ct.root); err != nil {
		return err
	}
	return ct.store.SetSize(ctx, ct.frontier.Size)
}

// rootFromFrontier recomputes the root by folding the frontier's present
// levels against empty subtrees above them — the same "fold the frontier"
// step real incremental-tree implementations use to answer GetRoot without
// a full node store.
func (ct *CommitmentTree) rootFromFrontier(f Frontier) types.Hash {
	var acc types.Hash
	haveAcc := false
	for level := 0; level < TreeDepth; level++ {
		lvl := f.Level[level]
		if lvl.Present {
			if !haveAcc {
				acc = lvl.Hash
				haveAcc = true
			} else {
				acc = ct.hasher.Combine(level, lvl.Hash, acc)
			}
		} else if haveAcc {
			acc = ct.hasher.Combine(level, acc, ct.emptyHash(level))
		}
	}
	if !haveAcc {
		return ct.emptyRoot()
	}
	return acc
}

// GetRoot returns the current root.
func (ct *CommitmentTree) GetRoot() types.Hash {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.root
}

// GetSize returns the current leaf count.
func (ct *CommitmentTree) GetSize() uint64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.frontier.Size
}

// GetPath returns the authentication path for position against the tree's
// current (live) root. Requires that position's nodes were materialized
// via AppendLeaf (never bridged over).
func (ct *CommitmentTree) GetPath(ctx context.Context, position uint64) (*MerklePath, error) {
	ct.mu.RLock()
	size := ct.frontier.Size
	ct.mu.RUnlock()
	return ct.GetPathAt(ctx, position, size)
}

// GetPathAt returns the authentication path for position as it stood once
// exactly asOfSize leaves had been appended, rather than against whatever
// the tree holds now. This matters because further leaves routinely
// arrive after a note is marked and checkpointed (sync keeps advancing
// while confirmations accrue): those later leaves fill in what were empty
// sibling subtrees along position's path, so a path built from the live
// store would verify against the current root instead of anchor_at(h).
// asOfSize must come from the TreeState snapshotted at the checkpoint the
// caller is targeting (see Engine.AuthPath).
func (ct *CommitmentTree) GetPathAt(ctx context.Context, position uint64, asOfSize uint64) (*MerklePath, error) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	if position >= asOfSize {
		return nil, ErrInvalidPosition
	}

	siblings := make([]types.Hash, TreeDepth)
	bits := make([]bool, TreeDepth)
	index := position
	for level := 0; level < TreeDepth; level++ {
		siblingIndex := index ^ 1
		siblingHash, err := ct.blockValue(ctx, level, siblingIndex, asOfSize)
		if err != nil {
			return nil, err
		}
		siblings[level] = siblingHash
		bits[level] = index%2 == 1
		index /= 2
	}

	return &MerklePath{Siblings: siblings, PathBits: bits, LeafPosition: position}, nil
}

// blockValue returns the value of the aligned, 2^level-leaf subtree
// rooted at index, as it stood once exactly asOfSize leaves had been
// appended. A subtree that was already fully populated by asOfSize is
// permanent — once complete, a node's stored value never changes, since
// later appends only ever touch nodes on their own ancestor chain — so it
// is read straight from the store. A subtree entirely beyond asOfSize is
// the empty subtree. A subtree straddling asOfSize is rebuilt from its
// two halves, the same empty-leaf padding convention rootFromFrontier
// uses above the frontier's highest present level.
func (ct *CommitmentTree) blockValue(ctx context.Context, level int, index uint64, asOfSize uint64) (types.Hash, error) {
	start := index << uint(level)
	end := start + (uint64(1) << uint(level))

	switch {
	case end <= asOfSize:
		return ct.store.GetNode(ctx, uint64(level), index)
	case start >= asOfSize:
		return ct.emptyHash(level), nil
	default:
		left, err := ct.blockValue(ctx, level-1, index*2, asOfSize)
		if err != nil {
			return types.Hash{}, err
		}
		right, err := ct.blockValue(ctx, level-1, index*2+1, asOfSize)
		if err != nil {
			return types.Hash{}, err
		}
		return ct.hasher.Combine(level-1, left, right), nil
	}
}

// VerifyPath reports whether path correctly authenticates leaf under root.
func (ct *CommitmentTree) VerifyPath(leaf types.Hash, path *MerklePath, root types.Hash) bool {
	if len(path.Siblings) != TreeDepth || len(path.PathBits) != TreeDepth {
		return false
	}
	current := leaf
	for i := 0; i < TreeDepth; i++ {
		if path.PathBits[i] {
			current = ct.hasher.Combine(i, path.Siblings[i], current)
		} else {
			current = ct.hasher.Combine(i, current, path.Siblings[i])
		}
	}
	return current == root
}

// Snapshot returns the current frontier as a wire TreeState, for checkpointing.
func (ct *CommitmentTree) Snapshot() types.TreeState {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return types.TreeState{Size: ct.frontier.Size, Frontier: ct.frontier.toWire()}
}

// Restore resets the tree to a checkpointed frontier (used by RewindTo) and
// truncates node storage above the restored size.
func (ct *CommitmentTree) Restore(ctx context.Context, state types.TreeState) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.frontier = frontierFromWire(state.Size, state.Frontier)
	ct.root = ct.rootFromFrontier(ct.frontier)

	if err := ct.store.DeleteAbove(ctx, state.Size); err != nil {
		return err
	}
	if err := ct.store.SetRoot(ctx, ct.root); err != nil {
		return err
	}
	return ct.store.SetSize(ctx, ct.frontier.Size)
}

func (ct *CommitmentTree) emptyHash(level int) types.Hash {
	if level == 0 {
		return ct.hasher.EmptyLeaf()
	}
	child := ct.emptyHash(level - 1)
	return ct.hasher.Combine(level-1, child, child)
}

func (ct *CommitmentTree) emptyRoot() types.Hash {
	return ct.emptyHash(TreeDepth)
}

// InMemoryTreeStore is a map-backed TreeStore for tests.
type InMemoryTreeStore struct {
	mu    sync.RWMutex
	nodes map[uint64]map[uint64]types.Hash
	root  types.Hash
	size  uint64
}

// NewInMemoryTreeStore creates an empty in-memory store.
func NewInMemoryTreeStore() *InMemoryTreeStore {
	return &InMemoryTreeStore{nodes: make(map[uint64]map[uint64]types.Hash)}
}

func (s *InMemoryTreeStore) GetNode(ctx context.Context, level, index uint64) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lvl, ok := s.nodes[level]
	if !ok {
		return types.EmptyHash, ErrLeafNotFound
	}
	h, ok := lvl[index]
	if !ok {
		return types.EmptyHash, ErrLeafNotFound
	}
	return h, nil
}

func (s *InMemoryTreeStore) SetNode(ctx context.Context, level, index uint64, hash types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes[level] == nil {
		s.nodes[level] = make(map[uint64]types.Hash)
	}
	s.nodes[level][index] = hash
	return nil
}

func (s *InMemoryTreeStore) GetRoot(ctx context.Context) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, nil
}

func (s *InMemoryTreeStore) SetRoot(ctx context.Context, root types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	return nil
}

func (s *InMemoryTreeStore) GetSize(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

func (s *InMemoryTreeStore) SetSize(ctx context.Context, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	return nil
}

func (s *InMemoryTreeStore) DeleteAbove(ctx context.Context, fromPosition uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for level, idx := range s.nodes {
		threshold := fromPosition >> level
		for index := range idx {
			if index >= threshold {
				delete(idx, index)
			}
		}
	}
	return nil
}
