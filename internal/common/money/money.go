// Package money 提供金额计算辅助，所有金额保留两位小数，四舍五入
package money

import (
	"github.com/shopspring/decimal"
)

// Zero 零金额
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Round2 保留两位小数，0.5 向远离零方向进位
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat 从浮点数构造金额并保留两位小数
func FromFloat(f float64) decimal.Decimal {
	return Round2(decimal.NewFromFloat(f))
}

// Percent 计算 base 的 pct%，结果保留两位小数
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// Sum 求和
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Format 格式化为两位小数字符串
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
