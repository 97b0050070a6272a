package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/hoshinonyaruko/snake-web/structs"
)

// 棋盘配色。头和身体分开上色，食物用醒目的红色。
var (
	colorBoard = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	colorGrid  = color.RGBA{R: 229, G: 229, B: 229, A: 255}
	colorBody  = color.RGBA{R: 67, G: 160, B: 71, A: 255}
	colorHead  = color.RGBA{R: 27, G: 94, B: 32, A: 255}
	colorFood  = color.RGBA{R: 229, G: 57, B: 53, A: 255}
)

// 终局帧的模糊强度
const overBlurSigma = 3.5

// 背景（底色加网格线）按 棋盘边长_格子像素 缓存，只画一次
var backgroundCache sync.Map

// Context 把 gg 画布适配成 Sink，同时保留取回图像的口子。
type Context struct {
	dc *gg.Context
}

// NewContext 创建给定像素尺寸的画布
func NewContext(width, height int) *Context {
	return &Context{dc: gg.NewContext(width, height)}
}

func (c *Context) Clear(col color.Color) {
	c.dc.SetColor(col)
	c.dc.Clear()
}

func (c *Context) FillRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawImage 把一张现成的图像贴到画布上，用于叠加缓存好的背景
func (c *Context) DrawImage(img image.Image, x, y int) {
	c.dc.DrawImage(img, x, y)
}

// Image 返回当前画布内容
func (c *Context) Image() image.Image {
	return c.dc.Image()
}

// Draw 把一帧快照完整画到任意 Sink 上：先清屏铺底色和网格，
// 再画食物和蛇身，蛇头最后画。
func Draw(snap structs.Snapshot, sink Sink, blockSize int) {
	drawBoard(sink, snap.Grid, blockSize)
	drawCells(snap, sink, blockSize)
}

// drawBoard 铺底色并画网格线。网格线画成 1 像素宽的窄矩形，
// 这样任何 Sink 实现都不需要额外的画线原语。
func drawBoard(sink Sink, grid, blockSize int) {
	side := grid * blockSize
	sink.Clear(colorBoard)
	for x := 0; x <= side; x += blockSize {
		sink.FillRect(x, 0, 1, side, colorGrid)
	}
	for y := 0; y <= side; y += blockSize {
		sink.FillRect(0, y, side, 1, colorGrid)
	}
}

// drawCells 画动态元素。食物先画，蛇压在食物上面：
// 食物刷新到蛇身下时就该被盖住，蛇走开才露出来。
func drawCells(snap structs.Snapshot, sink Sink, blockSize int) {
	sink.FillRect(snap.Food.X*blockSize, snap.Food.Y*blockSize, blockSize, blockSize, colorFood)
	for i := len(snap.Snake) - 1; i >= 1; i-- {
		c := snap.Snake[i]
		sink.FillRect(c.X*blockSize, c.Y*blockSize, blockSize, blockSize, colorBody)
	}
	if len(snap.Snake) > 0 {
		head := snap.Snake[0]
		sink.FillRect(head.X*blockSize, head.Y*blockSize, blockSize, blockSize, colorHead)
	}
}

// Frame 渲染一帧为图像。静态背景从缓存取，未命中时画一次存起来；
// 终局帧整体模糊，浏览器端一眼就能看出这局已经结束。
func Frame(snap structs.Snapshot, blockSize int) image.Image {
	side := snap.Grid * blockSize

	// 构造缓存键
	cacheKey := fmt.Sprintf("%d_%d", snap.Grid, blockSize)

	var bg *Context
	if cached, ok := backgroundCache.Load(cacheKey); ok {
		bg = cached.(*Context)
	} else {
		bg = NewContext(side, side)
		drawBoard(bg, snap.Grid, blockSize)
		backgroundCache.Store(cacheKey, bg)
	}

	final := NewContext(side, side)
	final.DrawImage(bg.Image(), 0, 0)
	drawCells(snap, final, blockSize)

	img := final.Image()
	if snap.Phase == structs.PhaseOver {
		img = imaging.Blur(img, overBlurSigma) // 调整sigma参数以控制模糊的强度
	}
	return img
}

// Scale 按整数倍放大图像，1 倍原样返回
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.Lanczos)
}

// EncodePNG 把图像编码成 PNG 字节串
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码PNG失败: %w", err)
	}
	return buf.Bytes(), nil
}
