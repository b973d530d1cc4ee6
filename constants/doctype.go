package constants

import (
	"strings"
)

type DocType string

const (
	Invoice           DocType = "invoice"
	GSTCertificate    DocType = "gst_certificate"
	PANCard           DocType = "pan_card"
	BillOfLading      DocType = "bol"
	ExportDeclaration DocType = "export_declaration"
)

var allDocTypes = []DocType{
	Invoice,
	GSTCertificate,
	PANCard,
	BillOfLading,
	ExportDeclaration,
}

// DocTypes returns every supported document type in display order.
func DocTypes() []DocType {
	out := make([]DocType, len(allDocTypes))
	copy(out, allDocTypes)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allDocTypes))
	for i, dt := range allDocTypes {
		result[i] = string(dt)
	}
	return result
}

// Label is the human name used in prompts and the terminal UI.
func (d DocType) Label() string {
	switch d {
	case Invoice:
		return "invoice"
	case GSTCertificate:
		return "GST certificate"
	case PANCard:
		return "PAN card"
	case BillOfLading:
		return "bill of lading"
	case ExportDeclaration:
		return "export declaration"
	}
	return string(d)
}

// ModelID is the document-intelligence model used to analyze this type.
func (d DocType) ModelID() string {
	if d == Invoice {
		return "prebuilt-invoice"
	}
	return "prebuilt-layout"
}

// Canonicalize maps user input (form values, CLI flags) onto a DocType.
func Canonicalize(input string) (DocType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]DocType{
		"gst":                GSTCertificate,
		"gst certificate":    GSTCertificate,
		"pan":                PANCard,
		"pan card":           PANCard,
		"bill of lading":     BillOfLading,
		"bill_of_lading":     BillOfLading,
		"export":             ExportDeclaration,
		"export declaration": ExportDeclaration,
		"shipping_bill":      ExportDeclaration,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	return "", false
}

// ExpectedFields lists the fields a reviewer expects on each document type.
// The analyzer prompt includes them as a checklist.
var ExpectedFields = map[DocType][]string{
	Invoice: {
		"InvoiceId", "InvoiceDate", "DueDate", "VendorName", "VendorAddress",
		"VendorTaxId", "CustomerName", "CustomerAddress", "InvoiceTotal", "TotalTax",
	},
	GSTCertificate: {
		"GSTIN", "LegalName", "TradeName", "ConstitutionOfBusiness",
		"AddressOfPrincipalPlace", "DateOfLiability", "TypeOfRegistration",
	},
	PANCard: {
		"PermanentAccountNumber", "Name", "FatherName", "DateOfBirth",
	},
	BillOfLading: {
		"BillOfLadingNumber", "Shipper", "Consignee", "NotifyParty",
		"PortOfLoading", "PortOfDischarge", "VesselName", "DescriptionOfGoods", "GrossWeight",
	},
	ExportDeclaration: {
		"ShippingBillNumber", "ShippingBillDate", "ExporterName", "IECode",
		"PortCode", "CountryOfDestination", "FOBValue", "HSCode",
	},
}
