package errors

// Convenience functions for the publish error taxonomy

// Config errors

func ConfigNotFound(path string) *SiteError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithCode(CodeConfig).
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *SiteError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithCode(CodeConfig).
		WithContext("field", field).
		WithContext("reason", reason)
}

// Local build errors

// ContentConflict reports that promoting an index page would discard content
// already present on its parent.
func ContentConflict(page string) *SiteError {
	return New(CategoryContent, SeverityFatal, "page already has content; promoting 'index' into it would destroy content").
		WithCode(CodeContentConflict).
		WithContext("page", page)
}

// FileSystemError wraps a local read/write/create failure.
func FileSystemError(operation, path string, cause error) *SiteError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithCode(CodeFileSystem).
		WithContext("operation", operation).
		WithContext("path", path)
}

func RenderFailed(page string, cause error) *SiteError {
	return Wrap(cause, CategoryRender, SeverityFatal, "page rendering failed").
		WithContext("page", page)
}

// Manifest errors

// ManifestNotFound marks the first publish of a module; callers treat it as
// an empty previous manifest.
func ManifestNotFound(key string) *SiteError {
	return New(CategoryManifest, SeverityInfo, "no previous manifest").
		WithCode(CodeManifestNotFound).
		WithContext("key", key)
}

func ManifestFetchError(key string, cause error) *SiteError {
	return Wrap(cause, CategoryManifest, SeverityError, "manifest retrieval failed").
		WithCode(CodeManifestFetch).
		WithContext("key", key)
}

func ManifestDecodeError(source string, cause error) *SiteError {
	return Wrap(cause, CategoryManifest, SeverityError, "manifest is not valid JSON").
		WithCode(CodeManifestDecode).
		WithContext("source", source)
}

// Remote errors

func RemoteDeleteError(key string, cause error) *SiteError {
	return Wrap(cause, CategoryRemote, SeverityWarning, "remote delete failed").
		WithCode(CodeRemoteDelete).
		WithContext("key", key)
}

func RemoteUploadError(key string, cause error) *SiteError {
	return Wrap(cause, CategoryRemote, SeverityWarning, "remote upload failed").
		WithCode(CodeRemoteUpload).
		WithContext("key", key)
}

// Internal errors

func InternalError(message string, cause error) *SiteError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
