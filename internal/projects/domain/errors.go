package domain

import "errors"

var (
	ErrNotFound         = errors.New("project not found")
	ErrTestCaseNotFound = errors.New("test case not found")
	ErrTooManyTestCases = errors.New("project already has the maximum number of test cases")
)
