package hostapi

import "encoding/json"

// Envelope error codes shared by the database and http-client namespaces.
const (
	codeDBError    = "db_error"
	codeValidation = "validation_error"
	codeTimeout    = "timeout"
	codeNetwork    = "network_fail"
	codeInvalidURL = "invalid_url"
)

type envError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type okEnvelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

type errEnvelope struct {
	OK  bool     `json:"ok"`
	Err envError `json:"err"`
}

// envOK renders {"ok":true,"data":...}.
func envOK(data any) string {
	out, err := json.Marshal(okEnvelope{OK: true, Data: data})
	if err != nil {
		return envFail(codeValidation, "unencodable result")
	}
	return string(out)
}

// envFail renders {"ok":false,"err":{"code":...,"message":...}}.
func envFail(code, message string) string {
	out, err := json.Marshal(errEnvelope{Err: envError{Code: code, Message: message}})
	if err != nil {
		return `{"ok":false,"err":{"code":"db_error","message":"unencodable error"}}`
	}
	return string(out)
}
