package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// DayLayout formats the calendar-day keys of reports.
const DayLayout = "2006-01-02"

// BucketCount is the number of two-hour windows in a day.
const BucketCount = 12

// Bucket aggregates the paid sales of one two-hour window, summed over
// every day of the report.
type Bucket struct {
	StartHour int             `json:"start_hour"`
	EndHour   int             `json:"end_hour"`
	Total     decimal.Decimal `json:"total"`
	Orders    int             `json:"orders"`
}

// Report is the sales projection over a set of paid orders.
type Report struct {
	From    string                     `json:"from"`
	To      string                     `json:"to"`
	Buckets []Bucket                   `json:"buckets"`
	Days    map[string]decimal.Decimal `json:"days"`
	Total   decimal.Decimal            `json:"total"`
	Count   int                        `json:"count"`
}

// BuildReport buckets orders by the two-hour window of their creation
// time in loc and sums Σ unit price × quantity per window and per
// calendar day.  It does not filter; callers pass paid orders only.
func BuildReport(orders []model.Order, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}
	r := Report{
		Buckets: make([]Bucket, BucketCount),
		Days:    map[string]decimal.Decimal{},
		Total:   decimal.Zero,
	}
	for i := range r.Buckets {
		r.Buckets[i] = Bucket{StartHour: i * 2, EndHour: i*2 + 2, Total: decimal.Zero}
	}
	for _, o := range orders {
		at := o.CreatedAt.In(loc)
		sum := model.ItemTotal(o.Items)

		b := &r.Buckets[at.Hour()/2]
		b.Total = b.Total.Add(sum)
		b.Orders++

		day := at.Format(DayLayout)
		r.Days[day] = r.Days[day].Add(sum)
		r.Total = r.Total.Add(sum)
		r.Count++
	}
	return r
}

// ReportService serves the sales report.
type ReportService struct {
	orders OrderStore
	loc    *time.Location
	now    func() time.Time
}

func NewReportService(s Stores, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{orders: s.Orders, loc: loc, now: time.Now}
}

// Location is the time zone days and buckets are computed in.
func (s *ReportService) Location() *time.Location { return s.loc }

// Report aggregates the paid orders of the calendar days from..to.  Zero
// times default to today.
func (s *ReportService) Report(ctx context.Context, tenantID uint64, from, to time.Time) (Report, error) {
	today := s.now()
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = today
	}
	start, end := dayRange(from, to, s.loc)
	orders, err := s.orders.ListPaid(ctx, tenantID, start, end)
	if err != nil {
		return Report{}, err
	}
	r := BuildReport(orders, s.loc)
	r.From = start.In(s.loc).Format(DayLayout)
	r.To = end.In(s.loc).AddDate(0, 0, -1).Format(DayLayout)
	return r, nil
}
