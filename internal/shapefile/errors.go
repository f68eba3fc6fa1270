package shapefile

import "errors"

// ErrSourceFormat is returned when the shapefile/DBF headers are malformed
// or the attribute and geometry record counts disagree.
var ErrSourceFormat = errors.New("shapefile: malformed source format")
