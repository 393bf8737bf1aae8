package notifier

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"AllowanceLogger/internal/model"
)

const (
	ColorInfo     = 0x3498db
	ColorIncrease = 0x2ecc71
	ColorDecrease = 0xe74c3c
)

// FormatAmount renders a quantity with thousands separators and at most three decimals.
func FormatAmount(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 3)
}

// FormatSigned renders a diff with its colour marker, e.g. "🟢 +1,500" or "🔴 -30".
func FormatSigned(diff decimal.Decimal) string {
	if diff.IsPositive() {
		return "🟢 +" + FormatAmount(diff)
	}
	return "🔴 " + FormatAmount(diff)
}

// FormatChange builds the alert for a change-mode event.
func FormatChange(evt *model.ChangeEvent, symbol string) Embed {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔹 **Wallet:** `%s`\n", evt.Name))
	b.WriteString(fmt.Sprintf("🔹 **Previous:** %s %s\n", FormatAmount(evt.Previous), symbol))
	b.WriteString(fmt.Sprintf("🔹 **New:** %s %s\n", FormatAmount(evt.Current), symbol))
	b.WriteString(fmt.Sprintf("🔹 **Change:** %s", FormatSigned(evt.Diff)))

	color := ColorDecrease
	if evt.Diff.IsPositive() {
		color = ColorIncrease
	}
	return Embed{Title: "📦 Allowance Updated", Description: b.String(), Color: color}
}

// FormatReward builds the alert for a reward-mode event.
func FormatReward(evt *model.ChangeEvent, symbol string) Embed {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔹 **Wallet:** `%s`\n", evt.Name))
	b.WriteString(fmt.Sprintf("🔹 **Previous:** %s %s\n", FormatAmount(evt.Previous), symbol))
	b.WriteString(fmt.Sprintf("🔹 **New:** %s %s\n", FormatAmount(evt.Current), symbol))
	b.WriteString(fmt.Sprintf("🔹 **Reward:** %s %s", FormatSigned(evt.Diff), symbol))
	return Embed{Title: "🎁 Reward Received", Description: b.String(), Color: ColorIncrease}
}

// FormatEvent picks the alert layout for the event's mode.
func FormatEvent(evt *model.ChangeEvent, symbol string) Embed {
	if evt.Mode == model.ModeReward {
		return FormatReward(evt, symbol)
	}
	return FormatChange(evt, symbol)
}

// FormatExport builds the message sent along with a monthly table.
func FormatExport(evt *model.ExportEvent, symbol string) string {
	return fmt.Sprintf("📊 **Monthly rewards** for `%s` (%s): %s %s", evt.Name, evt.Month, FormatAmount(evt.Total), symbol)
}
