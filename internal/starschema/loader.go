package starschema

import (
	"context"
	"fmt"

	"retailetl/internal/logging"
	"retailetl/internal/records"
	"retailetl/internal/warehouse"
)

// RecordError ties a rejection to the record that caused it.
type RecordError struct {
	// Index is the record's position within its partition file.
	Index int

	// TransactionID is the record's transaction id when present, for log
	// correlation. May be empty for malformed records.
	TransactionID string

	Err error
}

func (e RecordError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("record %d (transaction %s): %v", e.Index, e.TransactionID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Result summarizes one partition load. Every record lands in exactly one
// bucket: Inserted + Skipped + len(Errors) equals the record count.
type Result struct {
	// Inserted counts new fact rows.
	Inserted int

	// Skipped counts records whose fact natural key already existed.
	// Reruns and upstream duplicates land here; skips are normal, not
	// errors.
	Skipped int

	// Errors holds per-record rejections: validation failures, unparsable
	// values, unknown retailers, warehouse failures.
	Errors []RecordError
}

// Loader pushes validated records through dimension resolution into
// fact_sales.
type Loader struct {
	repo     warehouse.Repository
	resolver *Resolver
}

func NewLoader(repo warehouse.Repository) *Loader {
	return &Loader{repo: repo, resolver: NewResolver(repo)}
}

// Load processes every record in the slice. A failing record is recorded and
// skipped over; it never aborts the partition.
func (l *Loader) Load(ctx context.Context, recs []records.Record) Result {
	var res Result
	for i, rec := range recs {
		inserted, err := l.loadOne(ctx, rec)
		if err != nil {
			res.Errors = append(res.Errors, RecordError{
				Index:         i,
				TransactionID: rec.String(records.FieldTransactionID),
				Err:           err,
			})
			logging.Warn().
				Int("record", i).
				Str("transaction_id", rec.String(records.FieldTransactionID)).
				Err(err).
				Msg("record rejected")
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return res
}

func (l *Loader) loadOne(ctx context.Context, rec records.Record) (bool, error) {
	if err := records.Validate(rec); err != nil {
		return false, err
	}

	txnDate, err := rec.Date(records.FieldTransactionDate)
	if err != nil {
		return false, err
	}
	quantity, err := rec.Int(records.FieldQuantity)
	if err != nil {
		return false, err
	}
	unitPrice, err := rec.Decimal(records.FieldUnitPrice)
	if err != nil {
		return false, err
	}
	totalAmount, err := rec.Decimal(records.FieldTotalAmount)
	if err != nil {
		return false, err
	}

	dateID, err := l.resolver.ResolveDate(ctx, txnDate)
	if err != nil {
		return false, err
	}
	productID, err := l.resolver.ResolveProduct(ctx,
		rec.String(records.FieldProductID),
		rec.String(records.FieldProductName),
		rec.String(records.FieldCategory),
	)
	if err != nil {
		return false, err
	}
	customerID, err := l.resolver.ResolveCustomer(ctx, rec.OptionalString(records.FieldCustomerID))
	if err != nil {
		return false, err
	}
	storeID, err := l.resolver.ResolveStore(ctx, rec.OptionalString(records.FieldStoreID))
	if err != nil {
		return false, err
	}
	retailerID, err := l.resolver.ResolveRetailer(ctx, rec.String(records.FieldRetailerID))
	if err != nil {
		return false, err
	}

	return l.repo.InsertFact(ctx, warehouse.SalesFact, []any{
		dateID, productID, customerID, storeID, retailerID,
		rec.String(records.FieldTransactionID), quantity, unitPrice, totalAmount,
	})
}
