package render

import "image/color"

// Sink 是一帧画面的输出表面。引擎侧只依赖这两个绘图原语，
// 具体落到 gg 画布还是别的实现由调用方决定。
type Sink interface {
	// Clear 用给定颜色铺满整个表面
	Clear(c color.Color)
	// FillRect 以像素坐标填充一个实心矩形
	FillRect(x, y, w, h int, c color.Color)
}
