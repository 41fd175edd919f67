package booking

import "time"

const (
	operationQuote         = "quote"
	operationReserve       = "reserve"
	operationReleaseHold   = "release_hold"
	operationConvertHold   = "convert_hold"
	operationConfirm       = "confirm_payment"
	operationExpire        = "expire_payment_window"
	operationCancel        = "cancel"
	operationRefund        = "create_refund"
	operationSweep         = "sweep"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	defaultHoldTTL       = 15 * time.Minute
	defaultPaymentWindow = time.Hour
	defaultSweepBatch    = 100

	confirmAttempts = 2

	basisPointDivisor = int64(10000)
)
