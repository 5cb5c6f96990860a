package appidentityassets

import _ "embed"

// YAML mirrors .fulmen/app.yaml so an installed tickerlens binary still
// knows its name and env prefix outside the repository.
//
//go:embed app.yaml
var YAML []byte
