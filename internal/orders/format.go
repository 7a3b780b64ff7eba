package orders

import (
	"fmt"
	"strings"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// FormatConfirmation builds the HTML caption confirming order and returns the
// first item's photo to attach, if any.
func FormatConfirmation(order *model.Order) (caption, photoURL string) {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>Заказ №%d успешно сформирован!</b>\n\n", order.ID)
	b.WriteString("<b>Состав заказа:</b>\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s (%s) x %d шт. - %s ₽\n",
			item.ProductName, item.Size, item.Quantity, formatRubles(item.Subtotal()))
	}
	fmt.Fprintf(&b, "\n<b>Итоговая сумма: %s ₽</b>\n\n", formatRubles(order.TotalAmount))
	b.WriteString("Для оформления заказа и уточнения деталей, пожалуйста, " +
		"<b>перешлите это сообщение</b> менеджеру.")

	if len(order.Items) > 0 {
		photoURL = order.Items[0].PhotoURL
	}
	return b.String(), photoURL
}

// FormatHistory renders a user's recent orders, or a notice when there are none.
func FormatHistory(orders []model.Order) string {
	if len(orders) == 0 {
		return "У вас пока нет заказов."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Ваши последние %d заказов:</b>\n\n", len(orders))
	for _, o := range orders {
		fmt.Fprintf(&b, "<b>Заказ №%d</b> от %s\n", o.ID, o.CreatedAt.Format("02.01.2006 15:04"))
		fmt.Fprintf(&b, "Статус: <i>%s</i>\n", o.Status)
		fmt.Fprintf(&b, "Сумма: %s ₽\n", formatRubles(o.TotalAmount))
		b.WriteString("--------------------\n")
	}
	return b.String()
}

// formatRubles renders an amount with two decimals: 1299050 → "12990.50".
func formatRubles(a model.Amount) string {
	sign := ""
	if a < 0 {
		sign, a = "-", -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, int64(a)/100, int64(a)%100)
}
