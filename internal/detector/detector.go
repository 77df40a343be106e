package detector

import (
	"math"
	"strings"

	"github.com/lorechunk/lorechunk-mcp/internal/chunkset"
	"github.com/lorechunk/lorechunk-mcp/internal/document"
	"github.com/lorechunk/lorechunk-mcp/pkg/types"
)

const (
	// boundaryThreshold is the combined score above which a block boundary
	// is strong enough to close a chunk before the target size is reached.
	boundaryThreshold = 0.55

	// confidenceFloor is the minimum confidence assigned to detector output.
	confidenceFloor = 0.35
)

// Params are the size constraints for segmentation, all in characters.
// Invariant: MinChars <= TargetChars <= MaxChars; Overlap >= 0.
type Params struct {
	MinChars    int
	TargetChars int
	MaxChars    int
	Overlap     int
}

// DefaultParams returns the detection defaults used when a caller supplies
// none.
func DefaultParams() Params {
	return Params{MinChars: 400, TargetChars: 1200, MaxChars: 2000, Overlap: 200}
}

// Clamped returns a copy with the ordering invariant enforced.
func (p Params) Clamped() Params {
	if p.MinChars < 1 {
		p.MinChars = 1
	}
	if p.TargetChars < p.MinChars {
		p.TargetChars = p.MinChars
	}
	if p.MaxChars < p.TargetChars {
		p.MaxChars = p.TargetChars
	}
	if p.Overlap < 0 {
		p.Overlap = 0
	}
	return p
}

// EmbedFunc produces one vector per input text. It is supplied by an
// external collaborator; a nil func means structural scoring only.
type EmbedFunc func(texts []string) ([][]float64, error)

// BoundaryScorer estimates how strong the boundary between two adjacent
// blocks is, returning a score in [0, 1] and the reasons contributing to it.
type BoundaryScorer func(left, right *Block, similarity float64) (float64, []string)

// Detector proposes an initial chunk set for a document under size
// constraints, preferring structural boundaries.
type Detector struct {
	embed  EmbedFunc
	scorer BoundaryScorer
}

// Option configures a Detector.
type Option func(*Detector)

// WithEmbedFunc wires an embedding function for semantic boundary scoring.
func WithEmbedFunc(fn EmbedFunc) Option {
	return func(d *Detector) { d.embed = fn }
}

// WithBoundaryScorer replaces the default boundary scorer.
func WithBoundaryScorer(fn BoundaryScorer) Option {
	return func(d *Detector) { d.scorer = fn }
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{scorer: DefaultBoundaryScore}
	for _, opt := range opts {
		opt(d)
	}
	if d.scorer == nil {
		d.scorer = DefaultBoundaryScore
	}
	return d
}

// DefaultBoundaryScore combines structural cues with the semantic similarity
// drop between two adjacent blocks. A negative similarity means no semantic
// signal is available and only structure contributes.
func DefaultBoundaryScore(left, right *Block, similarity float64) (float64, []string) {
	var reasons []string
	structural := 0.0

	if right.Has(CueHeading) {
		structural += 0.4
		reasons = append(reasons, "heading start")
	}
	if left.TrailingBlankLines > 0 || right.Has(CueLeadingBlank) {
		structural += 0.15
		reasons = append(reasons, types.ReasonParagraphBreak)
	}
	if left.Has(CueFence) || right.Has(CueFence) {
		structural += 0.25
		reasons = append(reasons, "code fence")
	}
	if left.Has(CueList) != right.Has(CueList) {
		structural += 0.2
		reasons = append(reasons, "list boundary")
	}
	if left.Has(CueQuote) != right.Has(CueQuote) {
		structural += 0.15
		reasons = append(reasons, "quote boundary")
	}
	if structural > 1.0 {
		structural = 1.0
	}
	if similarity < 0 {
		return structural, reasons
	}

	semanticDrop := math.Max(0, 1.0-similarity)
	if semanticDrop > 0.4 {
		reasons = append(reasons, "semantic drop")
	}

	combined := math.Min(1.0, 0.6*semanticDrop+0.4*structural)
	return combined, reasons
}

// Detect segments the document into an ordered, partition-respecting chunk
// set. It fails only on empty or whitespace-only text; otherwise it returns
// at least one chunk covering the whole document.
func (d *Detector) Detect(doc *document.Document, params Params) (*chunkset.Set, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, types.ErrNoContent
	}
	blocks := ParseBlocks(doc)
	if len(blocks) == 0 {
		return nil, types.ErrNoContent
	}

	p := params.Clamped()
	blocks = splitOversizedBlocks(doc, blocks, p.MaxChars)
	scores := d.scoreBoundaries(blocks)

	type span struct {
		startIdx, endIdx int
		reasons          []string
		confidence       float64
	}
	var spans []span

	startIdx := 0
	startChar := blocks[0].StartChar
	for i := range blocks {
		if i == len(blocks)-1 {
			spans = append(spans, span{
				startIdx:   startIdx,
				endIdx:     i,
				reasons:    []string{types.ReasonDocumentEnd},
				confidence: 1.0,
			})
			break
		}

		score, reasons := scores[i].score, scores[i].reasons
		projectedEnd := blocks[i].EndChar
		currentLen := projectedEnd - startChar
		nextLen := blocks[i+1].EndChar - startChar

		mustSplit := nextLen > p.MaxChars
		canSplit := mustSplit || (currentLen >= p.MinChars &&
			(currentLen >= p.TargetChars || score >= boundaryThreshold))
		if !canSplit {
			continue
		}

		boundary := append([]string(nil), reasons...)
		if mustSplit {
			boundary = append(boundary, types.ReasonMaxCeiling)
		}
		if currentLen >= p.TargetChars {
			boundary = append(boundary, types.ReasonTargetLength)
		}
		if len(boundary) == 0 {
			boundary = append(boundary, types.ReasonTargetLength)
		}
		spans = append(spans, span{
			startIdx:   startIdx,
			endIdx:     i,
			reasons:    boundary,
			confidence: math.Max(score, confidenceFloor),
		})
		startIdx = i + 1
		startChar = blocks[startIdx].StartChar
	}

	// Blocks exclude blank separator lines, but the chunk set must exactly
	// partition the document's lines: the first chunk absorbs any leading
	// blanks, each chunk absorbs the blanks after it, and the last chunk
	// runs to the final line.
	chunks := make([]*types.Chunk, len(spans))
	for i, sp := range spans {
		startLine := blocks[sp.startIdx].StartLine
		endLine := blocks[sp.endIdx].EndLine
		if i == 0 {
			startLine = 0
		}
		if i == len(spans)-1 {
			endLine = doc.LineCount() - 1
		} else {
			endLine = blocks[spans[i+1].startIdx].StartLine - 1
		}
		chunks[i] = &types.Chunk{
			DocID:           doc.DocID,
			StartLine:       startLine,
			EndLine:         endLine,
			BoundaryReasons: sp.reasons,
			Confidence:      round3(sp.confidence),
			ChunkKind:       types.ChunkChapterText,
			Overlap:         p.Overlap,
		}
	}

	set := chunkset.New(doc.DocID, chunks...)
	set.Normalize(doc)
	d.applyOverlap(doc, set, p.Overlap)
	for _, c := range set.Chunks {
		c.ChunkID = types.DeterministicChunkID(doc.DocID, c.StartChar, c.EndChar)
	}
	if err := set.Validate(doc); err != nil {
		return nil, err
	}
	return set, nil
}

// splitOversizedBlocks breaks any block longer than maxChars into pieces at
// line boundaries, so the hard ceiling can be honored even inside a run of
// text with no blank lines. Cues carry over to every piece; trailing blanks
// stay on the last one.
func splitOversizedBlocks(doc *document.Document, blocks []*Block, maxChars int) []*Block {
	ix := doc.Index()
	out := make([]*Block, 0, len(blocks))
	for _, b := range blocks {
		if b.EndChar-b.StartChar <= maxChars {
			out = append(out, b)
			continue
		}
		pieceStart := b.StartLine
		pieceStartChar := b.StartChar
		for line := b.StartLine; line <= b.EndLine; line++ {
			_, lineEnd := ix.LineSpan(line)
			if lineEnd-pieceStartChar <= maxChars || line == pieceStart {
				continue
			}
			cut := ix.LineStart(line)
			out = append(out, &Block{
				Text:      doc.Slice(pieceStartChar, cut),
				StartLine: pieceStart,
				EndLine:   line - 1,
				StartChar: pieceStartChar,
				EndChar:   cut,
				Cues:      b.Cues,
			})
			pieceStart = line
			pieceStartChar = cut
		}
		out = append(out, &Block{
			Text:               doc.Slice(pieceStartChar, b.EndChar),
			StartLine:          pieceStart,
			EndLine:            b.EndLine,
			StartChar:          pieceStartChar,
			EndChar:            b.EndChar,
			Cues:               b.Cues,
			TrailingBlankLines: b.TrailingBlankLines,
		})
	}
	return out
}

// scoreBoundaries computes one (score, reasons) pair per adjacent block
// pair. Embedding failures degrade to structural scoring rather than failing
// detection.
func (d *Detector) scoreBoundaries(blocks []*Block) []struct {
	score   float64
	reasons []string
} {
	out := make([]struct {
		score   float64
		reasons []string
	}, len(blocks)-1)

	var embeddings [][]float64
	if d.embed != nil && len(blocks) > 1 {
		texts := make([]string, len(blocks))
		for i, b := range blocks {
			texts[i] = b.Text
		}
		if vecs, err := d.embed(texts); err == nil && len(vecs) == len(blocks) {
			embeddings = vecs
		}
	}

	for i := 0; i < len(blocks)-1; i++ {
		sim := -1.0 // no semantic signal
		if embeddings != nil {
			sim = cosineSimilarity(embeddings[i], embeddings[i+1])
		}
		score, reasons := d.scorer(blocks[i], blocks[i+1], sim)
		out[i].score = score
		out[i].reasons = reasons
	}
	return out
}

// applyOverlap fills ContextBefore for every chunk after the first: up to
// overlap characters of preceding text, rounded back to a line start. The
// line partition stays exact; the overlap travels as context only.
func (d *Detector) applyOverlap(doc *document.Document, set *chunkset.Set, overlap int) {
	if overlap <= 0 {
		return
	}
	ix := doc.Index()
	nonMeta := set.NonMeta()
	for i, c := range nonMeta {
		if i == 0 {
			continue
		}
		pull := c.StartChar - overlap
		if pull < 0 {
			pull = 0
		}
		ctxStart := ix.LineStart(ix.LineAt(pull))
		c.ContextBefore = doc.Slice(ctxStart, c.StartChar)
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
