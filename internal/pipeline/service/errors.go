package service

import (
	"crm_pipeline_backend/platform/apperr"
)

const (
	opTransition  = "pipeline.service.transition_stage"
	opProbability = "pipeline.service.update_probability"
	opConvert     = "pipeline.service.convert_to_customer"
	opCreate      = "pipeline.service.create"
	opAggregate   = "pipeline.service.aggregate"

	msgPartialConversion = "account was updated but the deal stage was not; retry the conversion"
)

// wrapStep keeps the kind of a store error and prefixes its message with
// which entity and step failed.
func wrapStep(err error, op, prefix string) error {
	if err == nil {
		return nil
	}
	kind := apperr.GetKind(err)
	if kind == apperr.KindUnknown {
		kind = apperr.KindInternal
	}
	return apperr.Wrap(kind, prefix+": "+apperr.Message(err, "unexpected store error"), err).WithOp(op)
}
