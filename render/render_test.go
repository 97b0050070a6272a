package render

import (
	"bytes"
	"image"
	"image/color"
	_ "image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoshinonyaruko/snake-web/structs"
)

type sinkOp struct {
	kind       string
	x, y, w, h int
	c          color.Color
}

// recordingSink captures the primitive calls so tests can assert on
// draw order without touching pixels.
type recordingSink struct {
	ops []sinkOp
}

func (r *recordingSink) Clear(c color.Color) {
	r.ops = append(r.ops, sinkOp{kind: "clear", c: c})
}

func (r *recordingSink) FillRect(x, y, w, h int, c color.Color) {
	r.ops = append(r.ops, sinkOp{kind: "fill", x: x, y: y, w: w, h: h, c: c})
}

func (r *recordingSink) cellFills() []sinkOp {
	var out []sinkOp
	for _, o := range r.ops {
		if o.kind == "fill" && o.w > 1 && o.h > 1 {
			out = append(out, o)
		}
	}
	return out
}

func testSnapshot() structs.Snapshot {
	return structs.Snapshot{
		Grid:  20,
		Snake: []structs.Cell{{X: 10, Y: 10}, {X: 9, Y: 10}, {X: 8, Y: 10}},
		Food:  structs.Cell{X: 5, Y: 5},
		Phase: structs.PhaseRunning,
	}
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestDrawClearsBeforeAnythingElse(t *testing.T) {
	sink := &recordingSink{}
	Draw(testSnapshot(), sink, 10)

	require.NotEmpty(t, sink.ops)
	assert.Equal(t, "clear", sink.ops[0].kind)
	assert.Equal(t, color.Color(colorBoard), sink.ops[0].c)
}

func TestDrawPaintsEveryCell(t *testing.T) {
	snap := testSnapshot()
	sink := &recordingSink{}
	Draw(snap, sink, 10)

	fills := sink.cellFills()
	require.Len(t, fills, 4) // one food block plus three snake segments

	assert.Equal(t, sinkOp{kind: "fill", x: 50, y: 50, w: 10, h: 10, c: colorFood}, fills[0],
		"food must be painted first so the snake covers it on overlap")

	last := fills[len(fills)-1]
	assert.Equal(t, 100, last.x)
	assert.Equal(t, 100, last.y)
	assert.Equal(t, color.Color(colorHead), last.c, "head is painted last")

	for _, o := range fills[1 : len(fills)-1] {
		assert.Equal(t, color.Color(colorBody), o.c)
	}
}

func TestFramePixels(t *testing.T) {
	snap := structs.Snapshot{
		Grid:  4,
		Snake: []structs.Cell{{X: 1, Y: 1}},
		Food:  structs.Cell{X: 2, Y: 2},
		Phase: structs.PhaseRunning,
	}
	img := Frame(snap, 8)

	require.Equal(t, 32, img.Bounds().Dx())
	require.Equal(t, 32, img.Bounds().Dy())

	assert.Equal(t, colorHead, rgbaAt(img, 12, 12), "head block center")
	assert.Equal(t, colorFood, rgbaAt(img, 20, 20), "food block center")
	assert.Equal(t, colorBoard, rgbaAt(img, 4, 28), "empty block center")
	assert.Equal(t, colorGrid, rgbaAt(img, 16, 4), "grid line between blocks")
}

func TestFrameDoesNotSmearAcrossFrames(t *testing.T) {
	first := structs.Snapshot{
		Grid:  4,
		Snake: []structs.Cell{{X: 1, Y: 1}},
		Food:  structs.Cell{X: 3, Y: 3},
		Phase: structs.PhaseRunning,
	}
	second := first
	second.Snake = []structs.Cell{{X: 2, Y: 1}}

	Frame(first, 8)
	img := Frame(second, 8)

	assert.Equal(t, colorHead, rgbaAt(img, 20, 12), "new head position")
	assert.Equal(t, colorBoard, rgbaAt(img, 12, 12),
		"old head cell must be plain board on a fresh frame")
}

func TestFrameCachesBackground(t *testing.T) {
	snap := structs.Snapshot{
		Grid:  6,
		Snake: []structs.Cell{{X: 3, Y: 3}},
		Food:  structs.Cell{X: 1, Y: 1},
		Phase: structs.PhaseRunning,
	}
	Frame(snap, 5)

	_, ok := backgroundCache.Load("6_5")
	assert.True(t, ok, "background for this board geometry should be cached")
}

func TestOverFrameIsBlurred(t *testing.T) {
	running := structs.Snapshot{
		Grid:  4,
		Snake: []structs.Cell{{X: 1, Y: 1}},
		Food:  structs.Cell{X: 2, Y: 2},
		Phase: structs.PhaseRunning,
	}
	over := running
	over.Phase = structs.PhaseOver

	a := Frame(running, 8)
	b := Frame(over, 8)

	diff := false
	for y := 0; y < 32 && !diff; y++ {
		for x := 0; x < 32; x++ {
			if rgbaAt(a, x, y) != rgbaAt(b, x, y) {
				diff = true
				break
			}
		}
	}
	assert.True(t, diff, "terminal frame must be visibly blurred")
}

func TestScale(t *testing.T) {
	img := Frame(structs.Snapshot{
		Grid:  4,
		Snake: []structs.Cell{{X: 1, Y: 1}},
		Food:  structs.Cell{X: 2, Y: 2},
		Phase: structs.PhaseRunning,
	}, 8)

	doubled := Scale(img, 2)
	assert.Equal(t, 64, doubled.Bounds().Dx())
	assert.Equal(t, 64, doubled.Bounds().Dy())

	assert.Same(t, img, Scale(img, 1), "factor 1 must not copy")
}

func TestEncodePNG(t *testing.T) {
	img := Frame(structs.Snapshot{
		Grid:  4,
		Snake: []structs.Cell{{X: 0, Y: 0}},
		Food:  structs.Cell{X: 2, Y: 2},
		Phase: structs.PhaseRunning,
	}, 8)

	data, err := EncodePNG(img)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}
