package imgx

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（截图输入基本都是 png）

	"github.com/nfnt/resize"
)

// 传输前的压缩参数。不是正确性要求，只为控制费用与延迟。
const (
	maxDim      = 1024
	jpegQuality = 85
)

// PrepareForAnalysis 把截图原始字节转成适合远端分析的 JPEG data URI。
//
// 约束：
// - 输入允许是 PNG/JPEG（依赖标准库解码器）
// - 任一边超过 maxDim 时按比例缩小（Lanczos3），只缩不放
// - 输出固定为 JPEG(quality 85) + base64 data URI
func PrepareForAnalysis(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("图片内容为空")
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return "", errors.New("图片尺寸无效")
	}

	if b.Dx() > maxDim || b.Dy() > maxDim {
		img = resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out.Bytes()), nil
}
