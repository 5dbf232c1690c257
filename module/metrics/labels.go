package metrics

const (
	LabelKind       = "kind"
	LabelTransition = "transition"
	LabelTxKind     = "tx_kind"
)
