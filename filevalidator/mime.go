package filevalidator

// Content types known to the validator. The strings are matched exactly
// against declared content types; no parameter stripping is done.
const (
	MIMETypePDF  = "application/pdf"
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeTIFF = "image/tiff"
	MIMETypeCSV  = "text/csv"
	MIMETypeText = "text/plain"
	MIMETypeZIP  = "application/zip"
	MIMETypeXLS  = "application/vnd.ms-excel"
	MIMETypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// InvoiceContentTypes returns the content types accepted for invoice uploads:
// PDF, the three image formats, CSV and both spreadsheet generations.
func InvoiceContentTypes() []string {
	return []string{
		MIMETypePDF,
		MIMETypeJPEG,
		MIMETypePNG,
		MIMETypeTIFF,
		MIMETypeCSV,
		MIMETypeXLS,
		MIMETypeXLSX,
	}
}

// extensionToMimeType maps file extensions to the content type a client would
// normally declare for them. Used when no content type is declared.
var extensionToMimeType = map[string]string{
	".pdf":  MIMETypePDF,
	".jpg":  MIMETypeJPEG,
	".jpeg": MIMETypeJPEG,
	".png":  MIMETypePNG,
	".tif":  MIMETypeTIFF,
	".tiff": MIMETypeTIFF,
	".csv":  MIMETypeCSV,
	".txt":  MIMETypeText,
	".zip":  MIMETypeZIP,
	".xls":  MIMETypeXLS,
	".xlsx": MIMETypeXLSX,
	".docx": MIMETypeDOCX,
}

// MIMETypeForExtension returns the MIME type for a given file extension
// (including the dot, lower case). Returns empty string if the extension is not recognized
func MIMETypeForExtension(ext string) string {
	return extensionToMimeType[ext]
}
