package hardware

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// UpdateKind 状态更新类型
type UpdateKind int

const (
	UpdateCredit UpdateKind = iota // 投币总额（整体替换，不累加）
	UpdateDoor                     // 门磁状态
	UpdateWeight                   // 称重读数
)

// Update 一次遥测解码产生的单字段更新
type Update struct {
	Kind  UpdateKind
	Slot  int     // 物理槽位（UpdateDoor/UpdateWeight有效）
	Door  string  // UpdateDoor有效
	Value float64 // UpdateCredit/UpdateWeight有效
}

// 固件遥测格式（两个固件版本的并集）：
//   "TOTAL CREDIT: 15.00" / "CREDIT:5"
//   "L1: [OPEN] Wt: 3.2" / "L2: [CLOSED]"
var (
	creditRe = regexp.MustCompile(`CREDIT:?\s*([0-9]+(?:\.[0-9]+)?)`)
	slotRe   = regexp.MustCompile(`^L([0-9]+):`)
	doorRe   = regexp.MustCompile(`\[([^\]]*)\]`)
	weightRe = regexp.MustCompile(`Wt:\s*([0-9]+(?:\.[0-9]+)?)`)
)

// Decoder 遥测解码器
// 宽松解析：只认识已知模式，认不出的行记日志后丢弃。固件升级改了格式
// 也不应该让解码崩溃。
type Decoder struct {
	slots *SlotTable
	log   *zap.Logger
}

// NewDecoder 创建遥测解码器
func NewDecoder(slots *SlotTable) *Decoder {
	return &Decoder{
		slots: slots,
		log:   logger.GetModuleLogger("serial"),
	}
}

// Decode 解码一行遥测，返回零个或多个字段更新
// 各条规则独立匹配，互不排斥。解析失败只丢弃当前字段，不影响其他字段。
func (d *Decoder) Decode(line string) []Update {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var updates []Update

	// 投币总额：匹配到即整体替换，未匹配到数字则保持原值
	if strings.Contains(line, "CREDIT") {
		if m := creditRe.FindStringSubmatch(line); m != nil {
			if v, ok := parseDecimal(m[1]); ok {
				updates = append(updates, Update{Kind: UpdateCredit, Value: v})
			} else {
				d.log.Debug("投币金额解析失败", zap.String("line", line))
			}
		} else {
			d.log.Debug("投币行缺少金额", zap.String("line", line))
		}
	}

	// 柜门遥测：门磁和重量各自独立提取，缺哪个就不动哪个
	if m := slotRe.FindStringSubmatch(line); m != nil {
		slot, err := strconv.Atoi(m[1])
		if err != nil || !d.slots.HasSlot(slot) {
			d.log.Warn("未知的物理槽位", zap.String("line", line))
			return updates
		}

		if dm := doorRe.FindStringSubmatch(line); dm != nil {
			updates = append(updates, Update{
				Kind: UpdateDoor,
				Slot: slot,
				Door: strings.TrimSpace(dm[1]),
			})
		}

		if wm := weightRe.FindStringSubmatch(line); wm != nil {
			if v, ok := parseDecimal(wm[1]); ok {
				updates = append(updates, Update{Kind: UpdateWeight, Slot: slot, Value: v})
			} else {
				d.log.Debug("重量解析失败", zap.String("line", line))
			}
		}

		return updates
	}

	if len(updates) == 0 {
		d.log.Debug("未识别的遥测行", zap.String("line", line))
	}

	return updates
}

// parseDecimal 解析非负小数，拒绝NaN/Inf
func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
