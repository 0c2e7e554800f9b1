//go:build !ocr

package pdf

import "errors"

// ErrOCRNotEnabled 表示未编译 OCR 支持。
// 启用方式：安装系统 tesseract 后以 -tags ocr 重新构建。
var ErrOCRNotEnabled = errors.New("ocr support not enabled; rebuild with -tags ocr")

// ocrEngine 为占位实现；所有操作返回 ErrOCRNotEnabled。
type ocrEngine struct{}

func newOCREngine(languages string) (*ocrEngine, error) {
	return nil, ErrOCRNotEnabled
}

func (e *ocrEngine) Recognize(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

func (e *ocrEngine) Close() error { return nil }
