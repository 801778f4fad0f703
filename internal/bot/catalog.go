package bot

import "github.com/Carelightt/pdftelegram/internal/domain"

// DefaultCatalog builds the production document catalog against the
// configured rendering endpoints.
//
// Field order is the dialog order, and the inline form accepts the same
// order after the command. The surname is the one field allowed to span
// several words; the receipt's amount is taken from the end of the line.
func DefaultCatalog(feeURL, receiptURL string) []domain.DocumentType {
	return []domain.DocumentType{
		{
			Code:        "fee",
			Command:     "pdf",
			EndpointURL: feeURL,
			Fields: []domain.Field{
				{Name: "tc", Prompt: "Müşterinin TC numarasını yaz:"},
				{Name: "ad", Prompt: "Müşterinin Adını yaz:", Uppercase: true},
				{Name: "soyad", Prompt: "Müşterinin Soyadını yaz:", Uppercase: true, Spacious: true},
			},
		},
		{
			Code:           "receipt",
			Command:        "dekont",
			EndpointURL:    receiptURL,
			FilenameSuffix: "DEKONT",
			Fields: []domain.Field{
				{Name: "tc", Prompt: "Müşterinin TC numarasını yaz:"},
				{Name: "ad", Prompt: "Müşterinin Adını yaz:", Uppercase: true},
				{Name: "soyad", Prompt: "Müşterinin Soyadını yaz:", Uppercase: true, Spacious: true},
				{Name: "tutar", Prompt: "Tutarı yaz (örn. 5.000):"},
			},
		},
	}
}
