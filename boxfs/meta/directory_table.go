package meta

import (
	"errors"
	"sort"

	"github.com/hashicorp/go-memdb"
)

var (
	ErrEntryNotFound = errors.New("directory entry not found")
	ErrEntryExists   = errors.New("directory entry already exists")
)

const entriesTable = "entries"

// DirEntry links a child inode into a parent directory under a name.
// A child has exactly one entry, hard links do not exist.
type DirEntry struct {
	ParentID uint64
	Name     string
	ChildID  uint64
}

// DirectoryTable is the two-way directory index. Lookups go both ways:
// (parent, name) to child and child back to (parent, name).
type DirectoryTable struct {
	db *memdb.MemDB
}

func directorySchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			entriesTable: {
				Name: entriesTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.UintFieldIndex{Field: "ParentID"},
								&memdb.StringFieldIndex{Field: "Name"},
							},
						},
					},
					"child": {
						Name:    "child",
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "ChildID"},
					},
					"parent": {
						Name:    "parent",
						Unique:  false,
						Indexer: &memdb.UintFieldIndex{Field: "ParentID"},
					},
				},
			},
		},
	}
}

func NewDirectoryTable() (*DirectoryTable, error) {
	db, err := memdb.NewMemDB(directorySchema())
	if err != nil {
		return nil, err
	}
	return &DirectoryTable{db: db}, nil
}

// Insert links childID under parentID with the given name.
func (t *DirectoryTable) Insert(parentID uint64, name string, childID uint64) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	if raw, err := txn.First(entriesTable, "id", parentID, name); err != nil {
		return err
	} else if raw != nil {
		return ErrEntryExists
	}
	if raw, err := txn.First(entriesTable, "child", childID); err != nil {
		return err
	} else if raw != nil {
		return ErrEntryExists
	}

	if err := txn.Insert(entriesTable, &DirEntry{ParentID: parentID, Name: name, ChildID: childID}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// LookupChild resolves a name within a directory.
func (t *DirectoryTable) LookupChild(parentID uint64, name string) (uint64, error) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(entriesTable, "id", parentID, name)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, ErrEntryNotFound
	}
	return raw.(*DirEntry).ChildID, nil
}

// LookupParent finds the entry pointing at childID.
func (t *DirectoryTable) LookupParent(childID uint64) (DirEntry, error) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(entriesTable, "child", childID)
	if err != nil {
		return DirEntry{}, err
	}
	if raw == nil {
		return DirEntry{}, ErrEntryNotFound
	}
	return *raw.(*DirEntry), nil
}

// ListChildren returns the entries of a directory sorted by name.
func (t *DirectoryTable) ListChildren(parentID uint64) ([]DirEntry, error) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(entriesTable, "parent", parentID)
	if err != nil {
		return nil, err
	}
	var out []DirEntry
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*DirEntry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// HasChildren reports whether a directory holds at least one entry.
func (t *DirectoryTable) HasChildren(parentID uint64) (bool, error) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(entriesTable, "parent", parentID)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Remove unlinks childID from its parent.
func (t *DirectoryTable) Remove(childID uint64) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(entriesTable, "child", childID)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrEntryNotFound
	}
	if err := txn.Delete(entriesTable, raw); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Move relinks childID under a new parent and name. The data blocks of
// the subtree are untouched, only the entry changes.
func (t *DirectoryTable) Move(childID uint64, newParentID uint64, newName string) error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(entriesTable, "child", childID)
	if err != nil {
		return err
	}
	if raw == nil {
		return ErrEntryNotFound
	}
	if taken, err := txn.First(entriesTable, "id", newParentID, newName); err != nil {
		return err
	} else if taken != nil {
		return ErrEntryExists
	}
	if err := txn.Delete(entriesTable, raw); err != nil {
		return err
	}
	if err := txn.Insert(entriesTable, &DirEntry{ParentID: newParentID, Name: newName, ChildID: childID}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// All returns every entry in index order: entries of one parent are
// contiguous and sorted by name. The order of the parent groups follows
// the index key encoding and is not numeric id order.
func (t *DirectoryTable) All() ([]DirEntry, error) {
	txn := t.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(entriesTable, "id")
	if err != nil {
		return nil, err
	}
	var out []DirEntry
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*DirEntry))
	}
	return out, nil
}

func (t *DirectoryTable) Len() (int, error) {
	entries, err := t.All()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear drops every entry.
func (t *DirectoryTable) Clear() error {
	txn := t.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(entriesTable, "id"); err != nil {
		return err
	}
	txn.Commit()
	return nil
}
