// Package state encodes chain snapshots into a self-describing binary
// container and decodes them again.
//
// The container is a BSON document:
//
//	{
//	  format:  "algo-pluginhost/chain",
//	  version: 1,
//	  plugins: [{index, bypassed, descriptor: {...}, state: <binary>?}, ...]
//	}
//
// A record without a "state" key has no plugin state; a present zero-length
// binary is an empty state. The two are kept apart on purpose.
package state

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

const (
	// FormatTag identifies chain state documents.
	FormatTag = "algo-pluginhost/chain"

	// Version is the newest container version this package writes and reads.
	Version = 1
)

// ErrMalformed is returned for data that is not a readable chain state container.
var ErrMalformed = errors.New("malformed chain state")

// ErrUnsupportedVersion is returned for containers written by a newer version.
var ErrUnsupportedVersion = errors.New("unsupported chain state version")

// Record is one persisted chain entry.
type Record struct {
	// Index is the entry's position when the snapshot was taken.
	Index      int
	Bypassed   bool
	Descriptor plugin.Descriptor
	// State is the plugin's opaque blob; nil means absent.
	State []byte
}

// HasState reports whether the record carries a state blob.
func (r Record) HasState() bool {
	return r.State != nil
}

// document is the decoding view of a container. Encoding builds the
// document by hand so a record without state has no "state" key at all.
type document struct {
	Format  string       `bson:"format"`
	Version int32        `bson:"version"`
	Plugins []wireRecord `bson:"plugins"`
}

type wireRecord struct {
	Index      int32              `bson:"index"`
	Bypassed   bool               `bson:"bypassed"`
	Descriptor *plugin.Descriptor `bson:"descriptor"`
	State      *primitive.Binary  `bson:"state"`
}

// Encode serialises records, in order, into a container.
func Encode(records []Record) ([]byte, error) {
	plugins := make(bson.A, 0, len(records))

	for _, r := range records {
		el := bson.D{
			{Key: "index", Value: int32(r.Index)}, //nolint:gosec
			{Key: "bypassed", Value: r.Bypassed},
			{Key: "descriptor", Value: r.Descriptor},
		}

		// primitive.Binary reports IsZero for empty data, so omitempty
		// cannot be used to tell an empty blob from a missing one.
		if r.State != nil {
			el = append(el, bson.E{
				Key:   "state",
				Value: primitive.Binary{Subtype: bson.TypeBinaryGeneric, Data: r.State},
			})
		}

		plugins = append(plugins, el)
	}

	doc := bson.D{
		{Key: "format", Value: FormatTag},
		{Key: "version", Value: int32(Version)},
		{Key: "plugins", Value: plugins},
	}

	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}

	return data, nil
}

// Decode parses a container. Records keep document order. A record whose
// descriptor is missing decodes with a zero Descriptor; instantiating it
// fails later and the record is skipped like any unavailable plugin.
func Decode(data []byte) ([]Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("state: %w: empty input", ErrMalformed)
	}

	var doc document

	err := bson.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("state: %w: %w", ErrMalformed, err)
	}

	if doc.Format != FormatTag {
		return nil, fmt.Errorf("state: %w: format %q", ErrMalformed, doc.Format)
	}

	if doc.Version > Version {
		return nil, fmt.Errorf("state: %w: %d is newer than %d", ErrUnsupportedVersion, doc.Version, Version)
	}

	records := make([]Record, 0, len(doc.Plugins))

	for _, w := range doc.Plugins {
		r := Record{Index: int(w.Index), Bypassed: w.Bypassed}

		if w.Descriptor != nil {
			r.Descriptor = *w.Descriptor
		}

		if w.State != nil {
			r.State = w.State.Data
			if r.State == nil {
				r.State = []byte{}
			}
		}

		records = append(records, r)
	}

	return records, nil
}
