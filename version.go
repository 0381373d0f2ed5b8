package ghostrouter

// VersionString is set at link time.
var VersionString string = "?.?.?+??????????????+???????"
