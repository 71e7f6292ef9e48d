// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeRegistryConflict            Code = "registry.register.conflict"
	CodeRegistryBindingUnresolvable Code = "registry.bind.unresolvable"
	CodeRegistryDescriptorInvalid   Code = "registry.descriptor.invalid"
	CodeRegistryEntryNotFound       Code = "registry.entry.not_found"
	CodeRegistryModuleInvalid       Code = "registry.module.invalid"

	CodeValidatorTypeInvalid   Code = "validator.type.invalid_value"
	CodeValidatorFieldsInvalid Code = "validator.fields.invalid_value"
	CodeValidatorSchemaFailure Code = "validator.schema.failure"

	CodeSchedulerInvokeFailure   Code = "scheduler.invoke.failure"
	CodeSchedulerShutdownTimeout Code = "scheduler.shutdown.timeout"
	CodeSchedulerStateInvalid    Code = "scheduler.state.transition.invalid"
	CodeSchedulerPlugNotFound    Code = "scheduler.plug.not_found"
	CodeSchedulerAlreadyStarted  Code = "scheduler.start.conflict"

	CodeDispatchIntegrationNotFound Code = "dispatch.integration.not_found"
	CodeDispatchNotApplicable       Code = "dispatch.postplug.invalid"
	CodeDispatchInvokeFailure       Code = "dispatch.invoke.failure"

	CodeStoreEntityNotFound     Code = "store.entity.get.not_found"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeTelemetryPublishFailure Code = "telemetry.publish.failure"
	CodeTelemetrySetupFailure   Code = "telemetry.setup.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldPlug(value string) Attr {
	return Field("plug", value)
}

func FieldPostPlug(value string) Attr {
	return Field("post_plug", value)
}

func FieldModule(value string) Attr {
	return Field("module", value)
}

func FieldIntegration(value string) Attr {
	return Field("integration", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the innermost code in err's chain, or "" for errors that
// carry none.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case HasCode(err, CodeValidatorTypeInvalid), HasCode(err, CodeValidatorFieldsInvalid):
		return http.StatusUnprocessableEntity
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
