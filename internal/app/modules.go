package app

import (
	"github.com/forgepipe/forgepipe/internal/registry"
	"github.com/forgepipe/forgepipe/modules/fs_write"
	"github.com/forgepipe/forgepipe/modules/http_request"
	"github.com/forgepipe/forgepipe/modules/print"
	"github.com/forgepipe/forgepipe/modules/template_render"
)

// coreModules is the default action set registered when the caller does
// not supply its own.
var coreModules = []registry.Module{
	&print.Module{},
	&fs_write.Module{},
	&template_render.Module{},
	&http_request.Module{},
}
