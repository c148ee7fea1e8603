package model

import "time"

type Setting struct {
	Key       string `gorm:"column:setting_key;primaryKey;size:64;not null"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// DisplaySettings is the company/branding block shown on invoices.
type DisplaySettings struct {
	CompanyName        string `yaml:"company_name" json:"company_name"`
	CompanyAddress     string `yaml:"company_address" json:"company_address"`
	CompanyEmail       string `yaml:"company_email" json:"company_email"`
	InvoiceFooter      string `yaml:"invoice_footer" json:"invoice_footer"`
	ProductDisplayName string `yaml:"product_display_name" json:"product_display_name"`
}

const (
	SettingCompanyName        = "company_name"
	SettingCompanyAddress     = "company_address"
	SettingCompanyEmail       = "company_email"
	SettingInvoiceFooter      = "invoice_footer"
	SettingProductDisplayName = "product_display_name"
)

func (s DisplaySettings) ToMap() map[string]string {
	return map[string]string{
		SettingCompanyName:        s.CompanyName,
		SettingCompanyAddress:     s.CompanyAddress,
		SettingCompanyEmail:       s.CompanyEmail,
		SettingInvoiceFooter:      s.InvoiceFooter,
		SettingProductDisplayName: s.ProductDisplayName,
	}
}

func DisplaySettingsFromMap(values map[string]string) DisplaySettings {
	return DisplaySettings{
		CompanyName:        values[SettingCompanyName],
		CompanyAddress:     values[SettingCompanyAddress],
		CompanyEmail:       values[SettingCompanyEmail],
		InvoiceFooter:      values[SettingInvoiceFooter],
		ProductDisplayName: values[SettingProductDisplayName],
	}
}
