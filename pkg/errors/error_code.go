/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const FactoryPrefix = "Factory."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00-99), used to distinguish errors from different business interfaces.
   00: General errors
   01: Job-related errors
   02: Image-related errors
   03: Retry/rerun-related errors
   [yyy] Error code range (000-999)
*/

// public: 00xxx
const (
	InternalError = FactoryPrefix + "00001"
	BadRequest    = FactoryPrefix + "00002"
	Forbidden     = FactoryPrefix + "00003"
	AlreadyExist  = FactoryPrefix + "00004"
	NotFound      = FactoryPrefix + "00005"
	Conflict      = FactoryPrefix + "00006"
	Aborted       = FactoryPrefix + "00007"
)

// job: 01xxx
const (
	JobAlreadyRunning = FactoryPrefix + "01001"
	JobNotFound       = FactoryPrefix + "01002"
	ConfigInvalid     = FactoryPrefix + "01003"
)

// image: 02xxx
const (
	ImageNotFound = FactoryPrefix + "02001"
)

// retry/rerun: 03xxx
const (
	RetryQueueBusy = FactoryPrefix + "03001"
)

// IsFactory returns true if the specified error reason carries a factory error code.
func IsFactory(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(string(apierrors.ReasonForError(err)), FactoryPrefix)
}

func IsBadRequest(err error) bool {
	return apierrors.ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return apierrors.ReasonForError(err) == InternalError
}

func IsConflict(err error) bool {
	reason := apierrors.ReasonForError(err)
	return reason == Conflict || reason == JobAlreadyRunning
}

func IsAborted(err error) bool {
	return apierrors.ReasonForError(err) == Aborted
}

func IsNotFound(err error) bool {
	reason := apierrors.ReasonForError(err)
	if reason == NotFound || reason == JobNotFound || reason == ImageNotFound {
		return true
	}
	return false
}

func IgnoreFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func GetErrorCode(err error) string {
	if err == nil || !IsFactory(err) {
		return ""
	}
	return string(apierrors.ReasonForError(err))
}

func NewBadRequest(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  BadRequest,
		Message: fmt.Sprintf("Bad request. %s", message),
	}}
}

func NewInternalError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  InternalError,
		Message: fmt.Sprintf("Internal error. %s", message),
	}}
}

func NewAlreadyExist(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  AlreadyExist,
		Message: message,
	}}
}

func NewForbidden(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusForbidden,
		Reason:  Forbidden,
		Message: message,
	}}
}

func NewConflict(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  Conflict,
		Message: message,
	}}
}

// NewJobAlreadyRunning reports that the engine's single-job slot is occupied.
func NewJobAlreadyRunning(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  JobAlreadyRunning,
		Message: message,
	}}
}

// NewAborted reports a step cancelled by a force stop.
func NewAborted(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  Aborted,
		Message: message,
	}}
}

func NewConfigInvalid(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  ConfigInvalid,
		Message: fmt.Sprintf("Invalid job configuration. %s", message),
	}}
}

func NotFoundErrorCode(kind string) metav1.StatusReason {
	switch kind {
	case "JobExecution":
		return JobNotFound
	case "GeneratedImage":
		return ImageNotFound
	default:
		return NotFound
	}
}

func NewNotFound(kind, name string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusNotFound,
		Reason: NotFoundErrorCode(kind),
		Details: &metav1.StatusDetails{
			Kind: kind,
			Name: name,
		},
		Message: fmt.Sprintf("%s %s not found.", kind, name),
	}}
}

func NewNotFoundWithMessage(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusNotFound,
		Reason:  NotFound,
		Message: message,
	}}
}
