package access

import "fmt"

// DenialKind は拒否の種別です。
type DenialKind string

const (
	KindPermission DenialKind = "permission_denied"
	KindObject     DenialKind = "object_access_denied"
)

// ReasonCode は拒否理由を表す安定したコードです。
type ReasonCode string

const (
	CodePermissionRequired ReasonCode = "permission_required"
	CodeGroupRequired      ReasonCode = "group_required"
	CodeOnBehalf           ReasonCode = "cannot_act_on_behalf"
	CodeNoLinkedEmployee   ReasonCode = "no_linked_employee"
	CodeNotOwner           ReasonCode = "not_owner"
	CodeAdminOnly          ReasonCode = "admin_only"
	CodeNotToday           ReasonCode = "not_today"
	CodeFieldRestricted    ReasonCode = "field_restricted"
)

// Denial は拒否の理由を表します。error としてそのまま返せます。
type Denial struct {
	Kind   DenialKind
	Code   ReasonCode
	Reason string
}

// Deny は権限レベルの拒否を生成します。
func Deny(code ReasonCode, reason string) *Denial {
	return &Denial{Kind: KindPermission, Code: code, Reason: reason}
}

// DenyObject はオブジェクトレベルの拒否を生成します。
func DenyObject(code ReasonCode, reason string) *Denial {
	return &Denial{Kind: KindObject, Code: code, Reason: reason}
}

func (d *Denial) Error() string {
	return fmt.Sprintf("access: %s (%s): %s", d.Kind, d.Code, d.Reason)
}

// Is は種別に応じたセンチネルエラーと一致させます。
func (d *Denial) Is(target error) bool {
	switch target {
	case ErrPermissionDenied:
		return d.Kind == KindPermission
	case ErrObjectAccessDenied:
		return d.Kind == KindObject
	default:
		return false
	}
}

// Decision は判定結果です。拒否時は Denial を保持します。
type Decision struct {
	denial *Denial
}

// Allow は許可の判定を返します。
func Allow() Decision {
	return Decision{}
}

// Refuse は拒否の判定を返します。
func Refuse(d *Denial) Decision {
	return Decision{denial: d}
}

func (d Decision) Allowed() bool {
	return d.denial == nil
}

func (d Decision) Denial() *Denial {
	return d.denial
}

// Err は拒否を error として返します。許可時は nil です。
func (d Decision) Err() error {
	if d.denial == nil {
		return nil
	}
	return d.denial
}
