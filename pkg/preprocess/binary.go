package preprocess

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdcustomize"
)

const topoMagic = "TDCCHTPO"
const topoFormatVersion = uint32(1)

// Topology's own binary form holds only what BuildTopology can't
// re-derive on its own: the upward edge list (Tail/Head, since
// BuildTopology's elimination tree and inverted index are deterministic
// functions of it) plus the EdgeOrigArcs mapping. The rank-space
// original graph (Topology.RankGraph) is a separate artifact, already
// covered by tdgraph's own binary format — this avoids duplicating that
// format here.
type topoFileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
	NumArcs  uint32
}

// WriteTopology serializes t's topology and origin-arc mapping, writing
// to a temp file and renaming atomically into place, mirroring
// cch.WriteBinary/tdgraph.WriteBinary's own idiom.
func WriteTopology(path string, t *Topology) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("preprocess: create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	numArcs := uint32(len(t.Topo.Head))
	hdr := topoFileHeader{
		Version:  topoFormatVersion,
		NumNodes: t.Topo.NumNodes,
		NumArcs:  numArcs,
	}
	copy(hdr.Magic[:], topoMagic)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("preprocess: write header: %w", err)
	}

	if err := writeUint32Slice(cw, t.Topo.Tail); err != nil {
		return fmt.Errorf("preprocess: write tail: %w", err)
	}
	if err := writeUint32Slice(cw, t.Topo.Head); err != nil {
		return fmt.Errorf("preprocess: write head: %w", err)
	}
	if err := writeUint32Slice(cw, t.OrigArcs.Upward); err != nil {
		return fmt.Errorf("preprocess: write upward orig arcs: %w", err)
	}
	if err := writeUint32Slice(cw, t.OrigArcs.Downward); err != nil {
		return fmt.Errorf("preprocess: write downward orig arcs: %w", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("preprocess: write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("preprocess: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("preprocess: rename: %w", err)
	}
	return nil
}

// ReadTopology reads back a topology written by WriteTopology, rebuilding
// the CCH overlay via cch.BuildTopology (its elimination tree and
// inverted index are always re-derived, never persisted). The returned
// Topology's RankGraph is nil: the rank-space original graph is loaded
// separately via tdgraph.ReadBinary.
func ReadTopology(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("preprocess: open %s: %w", path, err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr topoFileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("preprocess: read header: %w", err)
	}
	if string(hdr.Magic[:]) != topoMagic {
		return nil, fmt.Errorf("preprocess: bad magic bytes in %s", path)
	}
	if hdr.Version != topoFormatVersion {
		return nil, fmt.Errorf("preprocess: unsupported format version %d", hdr.Version)
	}

	tail, err := readUint32Slice(cr, int(hdr.NumArcs))
	if err != nil {
		return nil, fmt.Errorf("preprocess: read tail: %w", err)
	}
	head, err := readUint32Slice(cr, int(hdr.NumArcs))
	if err != nil {
		return nil, fmt.Errorf("preprocess: read head: %w", err)
	}
	upward, err := readUint32Slice(cr, int(hdr.NumArcs))
	if err != nil {
		return nil, fmt.Errorf("preprocess: read upward orig arcs: %w", err)
	}
	downward, err := readUint32Slice(cr, int(hdr.NumArcs))
	if err != nil {
		return nil, fmt.Errorf("preprocess: read downward orig arcs: %w", err)
	}

	var storedChecksum uint32
	if err := binary.Read(f, binary.LittleEndian, &storedChecksum); err != nil {
		return nil, fmt.Errorf("preprocess: read CRC32: %w", err)
	}
	if cr.hash.Sum32() != storedChecksum {
		return nil, fmt.Errorf("preprocess: CRC32 mismatch in %s", path)
	}

	edges := make([]cch.Edge, hdr.NumArcs)
	for i := range edges {
		edges[i] = cch.Edge{From: tail[i], To: head[i]}
	}
	topo := cch.BuildTopology(hdr.NumNodes, edges)

	return &Topology{
		Topo:     topo,
		OrigArcs: tdcustomize.EdgeOrigArcs{Upward: upward, Downward: downward},
	}, nil
}

func writeUint32Slice(w io.Writer, s []uint32) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s)
}

func readUint32Slice(r io.Reader, hint int) ([]uint32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if hint > 0 && int(n) != hint {
		return nil, fmt.Errorf("length mismatch: header says %d, slice prefix says %d", hint, n)
	}
	s := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	return s, nil
}

type crc32Writer struct {
	w    io.Writer
	hash interface {
		io.Writer
		Sum32() uint32
	}
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.hash.Write(p[:n])
	}
	return n, err
}

type crc32Reader struct {
	r    io.Reader
	hash interface {
		io.Writer
		Sum32() uint32
	}
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
