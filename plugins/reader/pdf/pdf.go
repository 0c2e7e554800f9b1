package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/text/unicode/norm"

	"ocrclean/pkg/contract"
	"ocrclean/plugins/reader/filesystem"
)

// Options 为 PDF Reader 的可选配置。
type Options struct {
	// AllowExts: 目录递归时仅处理这些扩展名。为空时采用默认 [".pdf"]。
	AllowExts []string `json:"allow_exts"`
	// ExcludeDirNames: 目录递归时跳过的目录名。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// Languages: OCR 识别语言（tesseract 语法，"+" 分隔）。默认 "fra+eng"。
	Languages string `json:"languages"`
	// DisableOCR: 关闭无文本层页面的 OCR 回退（仅提取原生文本层）。
	DisableOCR bool `json:"disable_ocr"`
}

// Reader 将 PDF 文件提取为 UTF-8 文本流。
// 逐页提取原生文本层；无文本层的页面渲染为位图后经 tesseract OCR 识别
// （需要 ocr 构建标签与系统 tesseract；未启用时静默退化为仅原生文本）。
// 页面文本以 "\n\n" 连接，整体做 NFC 归一。
type Reader struct {
	fs        *filesystem.FileSystem
	languages string
	ocr       bool
}

// New 创建 PDF Reader。文件遍历复用 filesystem Reader 的稳定序与符号链接语义。
func New(opts *Options) *Reader {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	allow := o.AllowExts
	if allow == nil {
		allow = []string{".pdf"}
	}
	if o.Languages == "" {
		o.Languages = "fra+eng"
	}
	fs := filesystem.New(&filesystem.Options{
		AllowExts:       allow,
		ExcludeDirNames: o.ExcludeDirNames,
	})
	return &Reader{fs: fs, languages: o.Languages, ocr: !o.DisableOCR}
}

// Iterate 遍历 roots，对每个 PDF 产出提取后的文本流。
func (r *Reader) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	return r.fs.Iterate(ctx, roots, func(fileID contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		text, err := r.extract(ctx, data)
		if err != nil {
			return fmt.Errorf("pdf %s: %w", fileID, err)
		}
		return yield(fileID, io.NopCloser(strings.NewReader(text)))
	})
}

// extract 逐页提取文本；OCR 引擎按需惰性创建，整个文档复用同一实例。
func (r *Reader) extract(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer doc.Close()

	var eng *ocrEngine
	defer func() {
		if eng != nil {
			_ = eng.Close()
		}
	}()
	ocrOn := r.ocr

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("page %d text: %w", i, err)
		}
		if strings.TrimSpace(text) == "" && ocrOn {
			if eng == nil {
				eng, err = newOCREngine(r.languages)
				if err != nil {
					if errors.Is(err, ErrOCRNotEnabled) {
						// 未编译 OCR 支持：退化为仅原生文本
						ocrOn = false
						eng = nil
					} else {
						return "", fmt.Errorf("ocr init: %w", err)
					}
				}
			}
			if eng != nil {
				img, err := doc.Image(i)
				if err != nil {
					return "", fmt.Errorf("page %d render: %w", i, err)
				}
				var buf bytes.Buffer
				if err := png.Encode(&buf, img); err != nil {
					return "", fmt.Errorf("page %d encode: %w", i, err)
				}
				text, err = eng.Recognize(buf.Bytes())
				if err != nil {
					return "", fmt.Errorf("page %d ocr: %w", i, err)
				}
			}
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}
	return norm.NFC.String(strings.Join(pages, "\n\n")), nil
}

// 静态接口断言
var _ contract.Reader = (*Reader)(nil)
