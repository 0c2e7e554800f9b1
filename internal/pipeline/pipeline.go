package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"ocrclean/internal/diag"
	"ocrclean/pkg/contract"
)

// - 顺序处理：逐文件、逐片段同步执行；原子组件均为同步、无内部并发。
// - 片段级降级：纠错失败（网络/协议类）时以原文保留该片段，继续后续片段；
//   输入/配置类与取消错误立即终止整次运行。
// - 输出稳定：同一输入两次运行产出相同的片段序列与装配结果。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader        contract.Reader
	Segmenter     contract.Segmenter
	PromptBuilder contract.PromptBuilder
	Corrector     contract.Corrector
	Assembler     contract.Assembler
	Writer        contract.Writer
}

// Observer 为注入式进度观察接口（终端提示等）。所有方法可为 no-op。
// 实现不得阻塞；编排层在片段边界同步调用。
type Observer interface {
	FileStart(fileID string, segsTotal int)
	FileProgress(done, total, degraded int)
	FileFinish(ok bool, dur time.Duration)
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// 输入根（输出由 Writer 的 options 决定，这里只保留输入）
	Inputs []string
	// Observer: 可选进度观察者；nil 表示无提示。
	Observer Observer
}

// Summary 为单次运行的汇总统计。
type Summary struct {
	Files     int   // 处理的文件数
	Segments  int   // 片段总数
	Corrected int   // 纠错成功片段数
	Degraded  int   // 降级（保留原文）片段数
	CharsIn   int64 // 输入字符数（rune）
	CharsOut  int64 // 输出字符数（rune）
}

// sidecarRow 为 JSONL 边车的一行：片段级审计记录。
type sidecarRow struct {
	Index     int64  `json:"index"`
	CharsSrc  int    `json:"chars_src"`
	CharsDst  int    `json:"chars_dst"`
	Corrected bool   `json:"corrected"`
	Reason    string `json:"reason,omitempty"`
}

// Run 执行完整流水线：Reader → Segmenter → Prompt → Corrector → Assembler → Writer。
// 返回汇总统计；error 非 nil 表示运行被致命错误终止（已写出的文件保持有效）。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	var sum Summary
	if err := sanity(comp, set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rtimer := (*diag.Timer)(nil)
	if logger != nil {
		rtimer = logger.Start("reader", "iterate")
	}
	err := comp.Reader.Iterate(ctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		if err := processFile(ctx, comp, set, logger, fid, rc, &sum); err != nil {
			return err
		}
		sum.Files++
		return nil
	})
	if err != nil {
		if logger != nil {
			code := diag.Classify(err)
			logger.Error("reader", string(code), "iterate failed", nil)
			diag.IncOp("reader", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("reader", string(code))
			}
		}
		return sum, fmt.Errorf("reader iterate: %w", err)
	}
	if rtimer != nil {
		rtimer.Finish("iterate", int64(sum.Files))
		diag.IncOp("reader", "finish", "success")
	}
	return sum, nil
}

// processFile 顺序处理单个文件：切分 → 逐片段纠错（降级容错） → 装配 → 写出。
func processFile(ctx context.Context, comp Components, set Settings, logger *diag.Logger, fid contract.FileID, rc io.ReadCloser, sum *Summary) error {
	stimer := (*diag.Timer)(nil)
	if logger != nil {
		stimer = logger.StartWith("segmenter", "split", string(fid), "")
	}
	segs, err := comp.Segmenter.Split(ctx, fid, rc)
	if err != nil {
		if logger != nil {
			code := diag.Classify(err)
			logger.ErrorWith("segmenter", string(code), "split failed", nil, string(fid), "")
			diag.IncOp("segmenter", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("segmenter", string(code))
			}
		}
		return fmt.Errorf("segmenter split: %w", err)
	}
	if err := contract.ValidateSegments(fid, segs); err != nil {
		if logger != nil {
			logger.ErrorWith("segmenter", string(diag.CodeInvariant), "segment invariants violated", nil, string(fid), "")
		}
		return fmt.Errorf("segmenter output: %w", err)
	}
	if stimer != nil {
		stimer.Finish("split", int64(len(segs)))
		diag.IncOp("segmenter", "finish", "success")
	}

	if set.Observer != nil {
		set.Observer.FileStart(string(fid), len(segs))
	}
	fileStart := time.Now()
	ok := false
	defer func() {
		if set.Observer != nil {
			set.Observer.FileFinish(ok, time.Since(fileStart))
		}
	}()

	// 逐片段纠错；可降级失败以原文保留
	results := make([]contract.SegmentResult, 0, len(segs))
	rows := make([]sidecarRow, 0, len(segs))
	degraded := 0
	for i, seg := range segs {
		out, corrected, reason, err := correctOne(ctx, comp, logger, seg)
		if err != nil {
			return err
		}
		if !corrected {
			degraded++
		}
		results = append(results, contract.SegmentResult{
			Index:     seg.Index,
			FileID:    fid,
			Output:    out,
			Corrected: corrected,
			Reason:    reason,
		})
		srcRunes := utf8.RuneCountInString(seg.Text)
		dstRunes := utf8.RuneCountInString(out)
		rows = append(rows, sidecarRow{
			Index:     int64(seg.Index),
			CharsSrc:  srcRunes,
			CharsDst:  dstRunes,
			Corrected: corrected,
			Reason:    reason,
		})
		sum.Segments++
		if corrected {
			sum.Corrected++
		} else {
			sum.Degraded++
		}
		sum.CharsIn += int64(srcRunes)
		sum.CharsOut += int64(dstRunes)
		if set.Observer != nil {
			set.Observer.FileProgress(i+1, len(segs), degraded)
		}
	}

	// 装配（空片段序列产出空工件）
	atimer := (*diag.Timer)(nil)
	if logger != nil {
		atimer = logger.StartWith("assembler", "assemble", string(fid), "")
	}
	rd, aerr := comp.Assembler.Assemble(ctx, fid, results)
	if aerr != nil {
		if logger != nil {
			code := diag.Classify(aerr)
			logger.ErrorWith("assembler", string(code), "assemble failed", nil, string(fid), "")
			diag.IncOp("assembler", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("assembler", string(code))
			}
		}
		return fmt.Errorf("assembler assemble: %w", aerr)
	}
	if atimer != nil {
		atimer.Finish("assemble", int64(len(results)))
		diag.IncOp("assembler", "finish", "success")
	}

	// 写出主工件与 JSONL 边车
	artifact := artifactID(fid)
	wtimer := (*diag.Timer)(nil)
	if logger != nil {
		wtimer = logger.StartWith("writer", "write", string(fid), "")
	}
	if werr := comp.Writer.Write(ctx, artifact, rd); werr != nil {
		if logger != nil {
			code := diag.Classify(werr)
			logger.ErrorWith("writer", string(code), "write failed", nil, string(fid), "")
			diag.IncOp("writer", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("writer", string(code))
			}
		}
		return fmt.Errorf("writer write: %w", werr)
	}
	var jb strings.Builder
	enc := json.NewEncoder(&jb)
	enc.SetEscapeHTML(false)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return fmt.Errorf("sidecar encode: %w", err)
		}
	}
	if perr := comp.Writer.Write(ctx, contract.ArtifactID(string(artifact)+".jsonl"), strings.NewReader(jb.String())); perr != nil {
		if logger != nil {
			code := diag.Classify(perr)
			logger.ErrorWith("writer", string(code), "write failed", nil, string(fid), "")
			diag.IncOp("writer", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("writer", string(code))
			}
		}
		return fmt.Errorf("writer write(jsonl): %w", perr)
	}
	if wtimer != nil {
		wtimer.Finish("write", 1)
		diag.IncOp("writer", "finish", "success")
	}
	ok = true
	return nil
}

// correctOne 处理单个片段：构造 Prompt → 调用纠错服务 → 结果判定。
// 返回 (输出文本, 是否纠错成功, 降级原因, 致命错误)。
// 可降级失败（网络/协议类）以原文返回；其余错误致命。
func correctOne(ctx context.Context, comp Components, logger *diag.Logger, seg contract.Segment) (string, bool, string, error) {
	segID := fmt.Sprintf("%d", seg.Index)

	p, err := comp.PromptBuilder.Build(ctx, seg)
	if err != nil {
		if logger != nil {
			code := diag.Classify(err)
			logger.ErrorWith("prompt_builder", string(code), "build failed", nil, string(seg.FileID), segID)
			diag.IncOp("prompt_builder", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("prompt_builder", string(code))
			}
		}
		return "", false, "", fmt.Errorf("prompt build: %w", err)
	}

	ctimer := (*diag.Timer)(nil)
	if logger != nil {
		ctimer = logger.StartWithKV("corrector", "correct", string(seg.FileID), segID, map[string]string{
			"chars": fmt.Sprintf("%d", utf8.RuneCountInString(seg.Text)),
		})
	}
	raw, cerr := comp.Corrector.Correct(ctx, seg, p)
	if cerr == nil {
		out := strings.TrimSpace(raw.Text)
		if out == "" {
			// 空响应视为协议无效
			cerr = contract.ErrResponseInvalid
		} else {
			if ctimer != nil {
				ctimer.Finish("correct", 1)
				diag.IncOp("corrector", "finish", "success")
			}
			return out, true, "", nil
		}
	}

	code := diag.Classify(cerr)
	if logger != nil {
		var kv map[string]string
		var ue contract.UpstreamError
		if errors.As(cerr, &ue) {
			kv = map[string]string{"http_status": fmt.Sprintf("%d", ue.UpstreamStatus())}
			if m := strings.TrimSpace(ue.UpstreamMessage()); m != "" {
				if len(m) > 200 {
					m = m[:200]
				}
				kv["upstream_msg"] = m
			}
		}
		diag.IncOp("corrector", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("corrector", string(code))
		}
		if diag.Recoverable(cerr) {
			logger.Warn("corrector", string(code), "correct failed, segment kept verbatim", string(seg.FileID), segID)
		} else {
			if kv != nil {
				logger.ErrorWithKV("corrector", string(code), "correct failed", nil, string(seg.FileID), segID, kv)
			} else {
				logger.ErrorWith("corrector", string(code), "correct failed", nil, string(seg.FileID), segID)
			}
		}
	}
	if diag.Recoverable(cerr) {
		// 降级：原文保留
		return seg.Text, false, string(code), nil
	}
	return "", false, "", fmt.Errorf("corrector correct: %w", cerr)
}

// artifactID 将输入 FileID 映射为输出工件标识：扩展名统一替换为 .txt。
// 例：docs/scan.pdf → docs/scan.txt；stdin → stdin.txt。
func artifactID(fid contract.FileID) contract.ArtifactID {
	s := string(fid)
	if ext := path.Ext(s); ext != "" {
		s = s[:len(s)-len(ext)]
	}
	return contract.ArtifactID(s + ".txt")
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Segmenter == nil || c.PromptBuilder == nil || c.Corrector == nil || c.Assembler == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}
