package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one (user, course) entry in a cart, joined with the live course
// title and price for display and totaling.
type Line struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	Quantity    int       `json:"quantity"`
	CourseTitle string    `json:"course_title"`
	CoursePrice string    `json:"course_price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Total sums quantity x live course price over the given lines.
func Total(lines []Line) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range lines {
		price, err := decimal.NewFromString(l.CoursePrice)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}
