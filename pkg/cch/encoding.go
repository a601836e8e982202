package cch

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

// noArc is the "None" sentinel for an encoded source slot's optional
// 32-bit edge id (spec.md §6 "Encoding of a source slot").
const noArc = ^uint32(0)

// EncodedSource is one flattened Sources breakpoint in the compacted
// output format: two optional 32-bit ids encode the three ShortcutSource
// cases. (noArc,noArc) = None. (noArc,up) = OriginalEdge(up).
// (down,up) = Shortcut(down,up).
type EncodedSource struct {
	At      float64
	DownArc uint32
	UpArc   uint32
}

// encodeSource flattens one Sources breakpoint. A SourceShortcutPair's
// DownEdge/UpEdge are always, respectively, a Downward-side and an
// Upward-side CCH edge id (Shortcut.Merge never constructs them any other
// way) — but compaction renumbers each side's surviving edges, so the
// reference must go through that side's downRemap/upRemap, not the
// pre-compaction topology edge id. SourceOriginalEdge's ArcID is an
// original road arc id, a separate id space compaction never touches.
func encodeSource(iv SourceInterval, downRemap, upRemap []uint32) EncodedSource {
	switch iv.Src.Kind {
	case SourceNone:
		return EncodedSource{At: iv.At, DownArc: noArc, UpArc: noArc}
	case SourceOriginalEdge:
		return EncodedSource{At: iv.At, DownArc: noArc, UpArc: iv.Src.ArcID}
	case SourceShortcutPair:
		return EncodedSource{
			At:      iv.At,
			DownArc: downRemap[iv.Src.DownEdge.Index],
			UpArc:   upRemap[iv.Src.UpEdge.Index],
		}
	default:
		panic("cch: unknown source kind")
	}
}

func decodeSource(e EncodedSource) ShortcutSource {
	switch {
	case e.DownArc == noArc && e.UpArc == noArc:
		return NoneSource
	case e.DownArc == noArc:
		return OriginalEdgeSource(e.UpArc)
	default:
		return ShortcutPairSource(
			EdgeRef{Side: Downward, Index: e.DownArc},
			EdgeRef{Side: Upward, Index: e.UpArc},
		)
	}
}

// HalfGraph is one direction (upward or downward) of the compacted,
// post-customization output: only required edges survive, each carrying
// its scalar bounds, constant flag, and a slice of its Sources.
type HalfGraph struct {
	FirstOut []uint32
	Head     []uint32
	Tail     []uint32
	Lower    []float64
	Upper    []float64
	Constant []bool

	FirstSource []uint32
	Sources     []EncodedSource
}

// CustomizedGraph is the read-only form every query server consumes
// (spec.md §6 "Output of customization").
type CustomizedGraph struct {
	NumNodes uint32
	Upward   HalfGraph
	Downward HalfGraph
}

// edgeRemap builds the pre-compaction-edge-id -> post-compaction-edge-id
// map for one side: noArc for a dropped edge, otherwise its new position
// among the surviving edges of that side, in the same order compaction
// emits them. A shortcut survives compaction only if it is both required
// and has a valid path — Required alone isn't enough, since a shortcut
// that was simply never customized (the common case for a freshly
// constructed, not-yet-merged overlay edge) still starts required.
func edgeRemap(shortcuts []*Shortcut) []uint32 {
	remap := make([]uint32, len(shortcuts))
	next := uint32(0)
	for i, sc := range shortcuts {
		if survivesCompaction(sc) {
			remap[i] = next
			next++
		} else {
			remap[i] = noArc
		}
	}
	return remap
}

func survivesCompaction(sc *Shortcut) bool {
	return sc != nil && sc.Required && sc.Sources.IsValidPath()
}

// compactHalfGraph drops every edge that doesn't survive compaction from
// one side's Shortcut array, keeping the topology's node ordering, and
// flattens Sources into the shared table addressed by FirstSource.
// downRemap/upRemap translate a ShortcutPairSource's operand edge ids
// into the *other* side's compacted id space (see encodeSource) — they
// must be built from both sides before either side is compacted.
func compactHalfGraph(topo *Topology, shortcuts []*Shortcut, downRemap, upRemap []uint32) HalfGraph {
	n := topo.NumNodes
	firstOut := make([]uint32, n+1)
	var head, tail []uint32
	var lower, upper []float64
	var constant []bool
	var firstSource []uint32
	var sources []EncodedSource

	for v := uint32(0); v < n; v++ {
		s, e := topo.FirstOut[v], topo.FirstOut[v+1]
		for edgeID := s; edgeID < e; edgeID++ {
			sc := shortcuts[edgeID]
			if !survivesCompaction(sc) {
				continue
			}
			head = append(head, topo.Head[edgeID])
			tail = append(tail, v)
			lower = append(lower, sc.LowerBound)
			upper = append(upper, sc.UpperBound)
			constant = append(constant, sc.Constant)
			firstSource = append(firstSource, uint32(len(sources)))
			for _, iv := range sc.Sources {
				sources = append(sources, encodeSource(iv, downRemap, upRemap))
			}
			firstOut[v+1]++
		}
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}
	firstSource = append(firstSource, uint32(len(sources)))

	return HalfGraph{
		FirstOut:    firstOut,
		Head:        head,
		Tail:        tail,
		Lower:       lower,
		Upper:       upper,
		Constant:    constant,
		FirstSource: firstSource,
		Sources:     sources,
	}
}

// Compact builds the full CustomizedGraph from a topology and the
// finalized upward/downward Shortcut arrays.
func Compact(topo *Topology, upward, downward []*Shortcut) *CustomizedGraph {
	upRemap := edgeRemap(upward)
	downRemap := edgeRemap(downward)
	return &CustomizedGraph{
		NumNodes: topo.NumNodes,
		Upward:   compactHalfGraph(topo, upward, downRemap, upRemap),
		Downward: compactHalfGraph(topo, downward, downRemap, upRemap),
	}
}

// SourcesOf reconstructs the Sources list of edge e in this half-graph.
func (h *HalfGraph) SourcesOf(edge uint32) Sources {
	s, e := h.FirstSource[edge], h.FirstSource[edge+1]
	out := make(Sources, 0, e-s)
	for i := s; i < e; i++ {
		enc := h.Sources[i]
		out = append(out, SourceInterval{At: enc.At, Src: decodeSource(enc)})
	}
	return out
}

// Binary format: a CRC32-checksummed flat file, grounded on
// pkg/graph/binary.go's WriteBinary/ReadBinary — same magic-bytes +
// versioned-header + unsafe.Slice zero-copy array convention, adapted to
// the CustomizedGraph's two half-graphs and variable-length source table.

const (
	magicBytes    = "TDCCHOVL"
	formatVersion = uint32(1)
)

type fileHeader struct {
	Magic          [8]byte
	Version        uint32
	NumNodes       uint32
	NumUpwardEdges uint32
	NumUpwardSrcs  uint32
	NumDownEdges   uint32
	NumDownSrcs    uint32
}

// WriteBinary serializes a CustomizedGraph, writing to a temp file and
// renaming atomically into place, exactly as the teacher's WriteBinary
// does for CHGraph.
func WriteBinary(path string, g *CustomizedGraph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	cw := &crc32Writer{w: f, hash: crc32.NewIEEE()}

	hdr := fileHeader{
		Version:        formatVersion,
		NumNodes:       g.NumNodes,
		NumUpwardEdges: uint32(len(g.Upward.Head)),
		NumUpwardSrcs:  uint32(len(g.Upward.Sources)),
		NumDownEdges:   uint32(len(g.Downward.Head)),
		NumDownSrcs:    uint32(len(g.Downward.Sources)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeHalfGraph(cw, &g.Upward); err != nil {
		return fmt.Errorf("write upward half-graph: %w", err)
	}
	if err := writeHalfGraph(cw, &g.Downward); err != nil {
		return fmt.Errorf("write downward half-graph: %w", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func writeHalfGraph(w io.Writer, h *HalfGraph) error {
	if err := writeUint32Slice(w, h.FirstOut); err != nil {
		return err
	}
	if err := writeUint32Slice(w, h.Head); err != nil {
		return err
	}
	if err := writeUint32Slice(w, h.Tail); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, h.Lower); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, h.Upper); err != nil {
		return err
	}
	if err := writeBoolSlice(w, h.Constant); err != nil {
		return err
	}
	if err := writeUint32Slice(w, h.FirstSource); err != nil {
		return err
	}
	for _, s := range h.Sources {
		if err := binary.Write(w, binary.LittleEndian, s.At); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, s.DownArc); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, s.UpArc); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary deserializes a CustomizedGraph written by WriteBinary.
func ReadBinary(path string) (*CustomizedGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cr := &crc32Reader{r: f, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != formatVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}

	g := &CustomizedGraph{NumNodes: hdr.NumNodes}
	g.Upward, err = readHalfGraph(cr, hdr.NumNodes, hdr.NumUpwardEdges, hdr.NumUpwardSrcs)
	if err != nil {
		return nil, fmt.Errorf("read upward half-graph: %w", err)
	}
	g.Downward, err = readHalfGraph(cr, hdr.NumNodes, hdr.NumDownEdges, hdr.NumDownSrcs)
	if err != nil {
		return nil, fmt.Errorf("read downward half-graph: %w", err)
	}

	expected := cr.hash.Sum32()
	var stored uint32
	if err := binary.Read(f, binary.LittleEndian, &stored); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if stored != expected {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", stored, expected)
	}

	return g, nil
}

func readHalfGraph(r io.Reader, numNodes, numEdges, numSources uint32) (HalfGraph, error) {
	var h HalfGraph
	var err error
	if h.FirstOut, err = readUint32Slice(r, int(numNodes+1)); err != nil {
		return h, err
	}
	if h.Head, err = readUint32Slice(r, int(numEdges)); err != nil {
		return h, err
	}
	if h.Tail, err = readUint32Slice(r, int(numEdges)); err != nil {
		return h, err
	}
	if h.Lower, err = readFloat64Slice(r, int(numEdges)); err != nil {
		return h, err
	}
	if h.Upper, err = readFloat64Slice(r, int(numEdges)); err != nil {
		return h, err
	}
	if h.Constant, err = readBoolSlice(r, int(numEdges)); err != nil {
		return h, err
	}
	if h.FirstSource, err = readUint32Slice(r, int(numEdges+1)); err != nil {
		return h, err
	}
	h.Sources = make([]EncodedSource, numSources)
	for i := range h.Sources {
		if err := binary.Read(r, binary.LittleEndian, &h.Sources[i].At); err != nil {
			return h, err
		}
		if err := binary.Read(r, binary.LittleEndian, &h.Sources[i].DownArc); err != nil {
			return h, err
		}
		if err := binary.Read(r, binary.LittleEndian, &h.Sources[i].UpArc); err != nil {
			return h, err
		}
	}
	return h, nil
}

// Zero-copy slice I/O, mirroring pkg/graph/binary.go's helpers.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func writeBoolSlice(w io.Writer, s []bool) error {
	buf := make([]byte, len(s))
	for i, v := range s {
		if v {
			buf[i] = 1
		}
	}
	_, err := w.Write(buf)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readBoolSlice(r io.Reader, n int) ([]bool, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i, b := range buf {
		out[i] = b != 0
	}
	return out, nil
}

// CRC32 wrapping writers/readers, identical convention to pkg/graph/binary.go.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
