package collector

import (
	"fmt"
	"strings"
	"time"
)

const (
	listDateLayout = "2006-01-02"
	apiDateLayout  = "2006-01-02 15:04:05"
)

// 东八区，所有 pubDate 都归一到这个固定偏移
var east8 = time.FixedZone("CST", 8*60*60)

// DatePolicy 决定日期文本无法解析时如何处理条目
type DatePolicy int

const (
	// DateKeep 保留条目，pubDate 为东八区下的零值时间（即“无效日期”）
	DateKeep DatePolicy = iota
	// DateEpoch 保留条目，pubDate 取 Unix 纪元
	DateEpoch
	// DateDrop 丢弃该条目
	DateDrop
	// DateFail 整次抽取失败
	DateFail
)

func (p DatePolicy) String() string {
	switch p {
	case DateKeep:
		return "keep"
	case DateEpoch:
		return "epoch"
	case DateDrop:
		return "drop"
	case DateFail:
		return "fail"
	default:
		return fmt.Sprintf("DatePolicy(%d)", int(p))
	}
}

// ParseDatePolicy 解析配置中的策略名，空串视为 keep
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return DateKeep, nil
	case "epoch":
		return DateEpoch, nil
	case "drop":
		return DateDrop, nil
	case "fail":
		return DateFail, nil
	default:
		return DateKeep, fmt.Errorf("unknown date policy %q", s)
	}
}

// parse 按 layout 在东八区解析 text。ok 为 false 表示条目应被丢弃
func (p DatePolicy) parse(text, layout string) (time.Time, bool, error) {
	t, perr := time.ParseInLocation(layout, strings.TrimSpace(text), east8)
	if perr == nil {
		return t, true, nil
	}
	switch p {
	case DateEpoch:
		return time.Unix(0, 0).In(east8), true, nil
	case DateDrop:
		return time.Time{}, false, nil
	case DateFail:
		return time.Time{}, false, fmt.Errorf("parse date %q: %w", text, perr)
	default:
		return time.Time{}.In(east8), true, nil
	}
}
