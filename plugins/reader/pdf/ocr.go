//go:build ocr

package pdf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ErrOCRNotEnabled 在本构建中永不返回（OCR 已编译启用）。
var ErrOCRNotEnabled = errors.New("ocr support not enabled; rebuild with -tags ocr")

// ocrEngine 包装 tesseract（经 gosseract），要求系统安装 tesseract 与相应语言包。
type ocrEngine struct {
	client *gosseract.Client
}

// newOCREngine 创建 OCR 引擎；languages 为 "+" 分隔的 tesseract 语言集。
func newOCREngine(languages string) (*ocrEngine, error) {
	client := gosseract.NewClient()
	if strings.TrimSpace(languages) != "" {
		if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set language %q: %w", languages, err)
		}
	}
	return &ocrEngine{client: client}, nil
}

// Recognize 对位图字节（PNG 等）执行 OCR，返回去除首尾空白的文本。
func (e *ocrEngine) Recognize(imageData []byte) (string, error) {
	if err := e.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close 释放引擎资源。
func (e *ocrEngine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
