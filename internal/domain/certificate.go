package domain

// Certificate は署名対象となる身元の主張を表す。
// JSONのフィールド順（principal, timestamp）は署名ハッシュの再現に使われるため変更しない。
type Certificate struct {
	Principal string `json:"principal"`
	Timestamp uint64 `json:"timestamp"` // ホスト時刻（ナノ秒）
}

// CertifiedIdentity は暗号化前の証明済み身元レコードを表す。
type CertifiedIdentity struct {
	PrincipalID     string      `json:"principal_id"`
	Certificate     Certificate `json:"certificate"`
	IssuerSignature string      `json:"issuer_signature"`
	IssuerPublicKey string      `json:"issuer_public_key,omitempty"`
}
