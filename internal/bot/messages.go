package bot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/money"
	"github.com/bahmanfallahi/jibjib/internal/service"
)

const (
	textWelcome = `👋 سلام! به جیب‌جیب خوش اومدی 😊
اینجا می‌تونی دخل و خرجت رو راحت مدیریت کنی.
کافیه خرجت رو بنویسی، مثلا: ۳۵ هزار ناهار

دستورات اصلی:
📊 گزارش روزانه: /reportdaily
📅 گزارش هفتگی: /reportweekly
💰 تنظیم بودجه: /setbudget
📈 وضعیت بودجه: /budget
↩️ آخرین تراکنش: /undo
📤 خروجی اکسل و نمودار: /export
🗑️ پاک کردن سوابق: /reset
✖️ لغو عملیات: /cancel
ℹ️ راهنما: /help`

	textUnknownCommand  = "دستور نامشخص است. برای راهنمایی /help را ارسال کنید."
	textRetry           = "خطای پیش‌بینی نشده‌ای رخ داد. لطفاً دوباره تلاش کنید."
	textNoExpenses      = "هیچ هزینه‌ای در این بازه ثبت نشده است."
	textBudgetPrompt    = "بودجه این ماه چقدر باشد؟ 💰 (فقط عدد را ارسال کنید)"
	textBudgetRetry     = "❌ ورودی نامعتبر است. دوباره فقط مبلغ را ارسال کنید."
	textNoBudget        = "هنوز بودجه‌ای برای این ماه تنظیم نکرده‌ای. با /setbudget بساز."
	textNoRecent        = "هیچ هزینه اخیری برای مدیریت وجود ندارد."
	textAlreadyDeleted  = "این هزینه قبلاً حذف شده است."
	textDeleted         = "✅ هزینه با موفقیت حذف شد."
	textEditWhich       = "کدام بخش را می‌خواهید ویرایش کنید؟"
	textEdited          = "✅ هزینه ویرایش شد."
	textInvalidAmount   = "مبلغ نامعتبر است."
	textInvalidCategory = "دسته‌بندی نامعتبر است."
	textInvalidField    = "فیلد نامعتبر است."
	textCancelled       = "👍 عملیات لغو شد."
	textNothingPending  = "کاری در جریان نیست."
	textResetWarning    = "⚠️ اخطار جدی ⚠️\nآیا مطمئن هستید که می‌خواهید تمام سوابق مالی را پاک کنید؟ این عمل غیرقابل بازگشت است."
	textResetDone       = "🗑️ تمام سوابق مالی شما پاک شد."
	textResetCancelled  = "👍 عملیات پاک‌سازی لغو شد."
	textExportStarted   = "در حال آماده‌سازی خروجی اکسل و نمودار... ⚙️"
	textExportFailed    = "خطا در تولید خروجی."
	textForbidden       = "⛔ شما اجازه دسترسی به این بخش را ندارید."
	textStatsFailed     = "خطا در دریافت آمار."
	textAIUnavailable   = "❌ خطا در ارتباط با هوش مصنوعی. لطفاً دوباره تلاش کنید."
	textAIInconclusive  = "🤔 مبلغ معتبری برای ثبت پیدا نشد. لطفاً در قالب 'مبلغ شرح هزینه' ارسال کنید. مثلا: 35000 ناهار"
)

var fieldLabels = map[model.ExpenseField]string{
	model.FieldAmount:   "مبلغ",
	model.FieldCategory: "دسته‌بندی",
	model.FieldNote:     "توضیحات",
}

func toman(d decimal.Decimal) string {
	return money.Format(d) + " تومان"
}

func remainingMark(remaining decimal.Decimal) string {
	if remaining.IsNegative() {
		return "🔴"
	}
	return "🟢"
}

func expenseSavedText(e *model.Expense) string {
	var b strings.Builder
	b.WriteString("✅ هزینه ثبت شد:\n\n")
	fmt.Fprintf(&b, "💰 مبلغ: %s\n", toman(e.Amount))
	fmt.Fprintf(&b, "📂 دسته: %s\n", e.Category)
	if e.Note != "" {
		fmt.Fprintf(&b, "📝 توضیحات: %s", e.Note)
	}
	return strings.TrimRight(b.String(), "\n")
}

func lastExpenseText(e *model.Expense) string {
	text := fmt.Sprintf("آخرین هزینه: %s - %s", toman(e.Amount), e.Category)
	if e.Note != "" {
		text += " (" + e.Note + ")"
	}
	return text
}

func alertText(a *model.AlertEvent) string {
	pct := money.Percent(a.Percent, 0)
	switch a.Level {
	case model.AlertExhausted:
		return fmt.Sprintf("🚨 بودجه شما تمام شد! (%s٪ مصرف شده)", pct)
	case model.AlertWarning:
		return fmt.Sprintf("⚠️ ۸۰٪ بودجه مصرف شد. (%s٪)", pct)
	default:
		return fmt.Sprintf("🔔 نصف بودجه مصرف شد. (%s٪)", pct)
	}
}

func rolloverText(s *model.RolloverSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 ماه %s به پایان رسید!\n\n✨ خلاصه عملکرد شما:\n", s.PreviousCycle.MonthName())
	if remaining, ok := s.Remaining(); ok {
		fmt.Fprintf(&b, "💰 بودجه: %s\n", toman(*s.PreviousBudget))
		fmt.Fprintf(&b, "🧾 مجموع خرج: %s\n", toman(s.PreviousSpent))
		fmt.Fprintf(&b, "%s وضعیت نهایی: %s\n\n", remainingMark(remaining), toman(remaining))
	} else {
		fmt.Fprintf(&b, "🧾 مجموع خرج: %s (بودجه‌ای تنظیم نشده بود).\n\n", toman(s.PreviousSpent))
	}
	fmt.Fprintf(&b, "حالا بودجه ماه جدید، %s، را با دستور /setbudget تعیین کن.", s.CurrentCycle.MonthName())
	return b.String()
}

func budgetSetText(budget *model.BudgetCycle) string {
	return fmt.Sprintf("✅ بودجه ماه %s روی %s تنظیم شد.", budget.Cycle.MonthName(), toman(budget.Amount))
}

func budgetStatusText(s *service.BudgetStatus) string {
	return fmt.Sprintf("💰 بودجه ماه %s: %s\n🧾 خرج تا امروز: %s (%s٪)\n\n%s مانده: %s",
		s.Cycle.MonthName(), toman(*s.Budget),
		toman(s.Spent), money.Percent(s.Percent, 1),
		remainingMark(s.Remaining), toman(s.Remaining))
}

func reportText(r *service.Report) string {
	title := "📊 گزارش روزانه شما"
	if r.Type == service.WeeklyReport {
		title = "📅 گزارش هفتگی شما"
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "📂 %s: %s\n", c.Category, toman(c.Amount))
	}
	fmt.Fprintf(&b, "\n💰 مجموع: %s", toman(r.Total))
	return b.String()
}

func statsText(s *service.AdminStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 آمار کلی ربات\n\n👥 کل کاربران: %d\n🧾 کل هزینه‌ها: %d\n\n--- کاربران جدید روزانه ---\n", s.Users, s.Expenses)
	for _, d := range s.Signups {
		fmt.Fprintf(&b, "🗓️ %s: %d کاربر جدید\n", d.Day, d.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func editPrompt(field model.ExpenseField) string {
	return fmt.Sprintf("لطفاً مقدار جدید برای «%s» را ارسال کنید:", fieldLabels[field])
}

func editInvalidText(field model.ExpenseField) string {
	switch field {
	case model.FieldAmount:
		return textInvalidAmount
	case model.FieldCategory:
		return textInvalidCategory
	default:
		return textInvalidField
	}
}

func setBudgetInvalidText(raw string) string {
	return fmt.Sprintf("❌ مبلغ '%s' نامعتبر است.", raw)
}
