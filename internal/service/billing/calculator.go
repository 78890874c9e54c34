package billing

import (
	"github.com/shopspring/decimal"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/money"
	"github.com/gogomarket/rental-backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CalcInput 账单计算输入
type CalcInput struct {
	Rent          decimal.Decimal
	WaterUsage    decimal.Decimal
	WaterRate     decimal.Decimal
	ElectricUsage decimal.Decimal
	ElectricRate  decimal.Decimal
	Discount      decimal.Decimal
	VatPercent    decimal.Decimal
}

// CalcResult 账单计算结果，金额均保留两位小数
type CalcResult struct {
	Rent          decimal.Decimal `json:"rent"`
	WaterUsage    decimal.Decimal `json:"water_usage"`
	Water         decimal.Decimal `json:"water"`
	ElectricUsage decimal.Decimal `json:"electric_usage"`
	Electric      decimal.Decimal `json:"electric"`
	Charges       decimal.Decimal `json:"charges"`
	Discount      decimal.Decimal `json:"discount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VatPercent    decimal.Decimal `json:"vat_percent"`
	Vat           decimal.Decimal `json:"vat"`
	TotalVat      decimal.Decimal `json:"total_vat"`
}

// Calculate 计算账单金额
// 折扣不能为负数也不能超过应收合计，税率不能为负数，税额按折后小计计算
func Calculate(in CalcInput) (CalcResult, error) {
	if in.VatPercent.IsNegative() {
		return CalcResult{}, errors.ErrVatInvalid
	}
	if in.Discount.IsNegative() {
		return CalcResult{}, errors.ErrDiscountInvalid
	}

	r := CalcResult{
		Rent:          money.Round2(in.Rent),
		WaterUsage:    in.WaterUsage,
		Water:         money.Round2(in.WaterUsage.Mul(in.WaterRate)),
		ElectricUsage: in.ElectricUsage,
		Electric:      money.Round2(in.ElectricUsage.Mul(in.ElectricRate)),
		Discount:      money.Round2(in.Discount),
		VatPercent:    in.VatPercent,
	}
	r.Charges = money.Sum(r.Rent, r.Water, r.Electric)
	if r.Discount.GreaterThan(r.Charges) {
		return CalcResult{}, errors.ErrDiscountInvalid.WithMessagef("折扣 %s 超过应收合计 %s", money.Format(r.Discount), money.Format(r.Charges))
	}
	r.Subtotal = r.Charges.Sub(r.Discount)
	r.Vat = money.Percent(r.Subtotal, r.VatPercent)
	r.TotalVat = money.Round2(r.Subtotal.Mul(decimal.NewFromInt(1).Add(r.VatPercent.Div(hundred))))
	return r, nil
}

// SumUsage 按表类型汇总用量
func SumUsage(usages []*models.MeterUsage) (water, electric decimal.Decimal) {
	for _, u := range usages {
		if u.Meter == nil {
			continue
		}
		switch u.Meter.MeterType {
		case models.MeterTypeWater:
			water = water.Add(u.MeterUsage)
		case models.MeterTypeElectric:
			electric = electric.Add(u.MeterUsage)
		}
	}
	return water, electric
}
