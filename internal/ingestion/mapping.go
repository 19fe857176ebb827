package ingestion

import (
	"fmt"
	"strings"

	"github.com/titanbuild/vistalink/internal/domain"
)

// externalIDHeaders lists the header aliases Vista uses for each kind's
// natural key. Header names are compared after normalization.
var externalIDHeaders = map[domain.Kind][]string{
	domain.KindContracts:   {"contract", "contract_number", "contract_no", "number"},
	domain.KindWorkOrders:  {"work_order", "work_order_number", "wo_number", "number"},
	domain.KindEmployees:   {"employee", "employee_number", "emp_no", "number"},
	domain.KindCustomers:   {"customer", "customer_number", "cust_no", "number"},
	domain.KindVendors:     {"vendor", "vendor_number", "number"},
	domain.KindDepartments: {"department", "dept", "department_number", "number"},
}

// fieldTarget identifies which typed record field a header feeds.
type fieldTarget int

const (
	targetName fieldTarget = iota
	targetAmount
	targetLocation
	targetEmail
	targetPhone
	targetStartDate
)

var fieldHeaders = map[string]fieldTarget{
	"name":                  targetName,
	"description":           targetName,
	"amount":                targetAmount,
	"contract_amount":       targetAmount,
	"original_contract_amt": targetAmount,
	"location":              targetLocation,
	"city":                  targetLocation,
	"address":               targetLocation,
	"job_site":              targetLocation,
	"email":                 targetEmail,
	"e_mail":                targetEmail,
	"phone":                 targetPhone,
	"phone_number":          targetPhone,
	"start_date":            targetStartDate,
	"proj_start_date":       targetStartDate,
	"hire_date":             targetStartDate,
}

// buildRecord converts one export row into a VistaRecord. Recognized headers
// feed the typed comparison fields; everything else lands in Attributes so no
// exported column is lost.
func buildRecord(kind domain.Kind, headers []string, row []string) (domain.VistaRecord, error) {
	externalID := ""
	idHeader := ""
	for _, alias := range externalIDHeaders[kind] {
		for i, header := range headers {
			if header != alias || i >= len(row) {
				continue
			}
			if value := strings.TrimSpace(row[i]); value != "" {
				externalID = value
				idHeader = header
			}
			break
		}
		if externalID != "" {
			break
		}
	}
	if externalID == "" {
		return domain.VistaRecord{}, fmt.Errorf("missing external id (expected one of: %s)", strings.Join(externalIDHeaders[kind], ", "))
	}

	record := domain.NewVistaRecord(kind, externalID, "")
	record.Attributes = make(map[string]any)

	for i, header := range headers {
		if header == "" || header == idHeader || i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}

		target, ok := fieldHeaders[header]
		if !ok {
			record.Attributes[header] = value
			continue
		}

		switch target {
		case targetName:
			if record.Name == "" {
				record.Name = value
			} else {
				record.Attributes[header] = value
			}
		case targetAmount:
			amount, err := parseAmount(value)
			if err != nil {
				return domain.VistaRecord{}, err
			}
			record.Amount = amount
		case targetLocation:
			if record.Location == "" {
				record.Location = value
			} else {
				record.Attributes[header] = value
			}
		case targetEmail:
			record.Email = strings.ToLower(value)
		case targetPhone:
			record.Phone = value
		case targetStartDate:
			date, err := parseDate(value)
			if err != nil {
				return domain.VistaRecord{}, err
			}
			record.StartDate = date
		}
	}

	if record.Name == "" {
		return domain.VistaRecord{}, fmt.Errorf("missing name for external id %s", externalID)
	}
	return record, nil
}
