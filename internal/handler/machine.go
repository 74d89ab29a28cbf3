package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
)

// machineDocument is the /machine response. Numeric values are
// decimal strings so 64-bit quantities survive every JSON consumer
// bit-exactly.
type machineDocument struct {
	MachineID          string `json:"machine_id"`
	BootID             string `json:"boot_id"`
	Hostname           string `json:"hostname"`
	OSPrettyName       string `json:"os_pretty_name"`
	Virtualization     string `json:"virtualization"`
	Usage              string `json:"usage"`
	CutoffFromRealtime string `json:"cutoff_from_realtime"`
	CutoffToRealtime   string `json:"cutoff_to_realtime"`
}

// Machine handles GET /machine: one JSON document describing the host
// and the journal's extents.
func (g *Gateway) Machine(c *gin.Context) {
	j, err := g.source.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to open journal: %s\n", err)
		return
	}
	defer j.Close()

	mid, err := g.sys.MachineID()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to determine machine ID: %s\n", err)
		return
	}
	bid, err := g.sys.BootID()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to determine boot ID: %s\n", err)
		return
	}
	hostname, err := g.sys.Hostname()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to determine hostname: %s\n", err)
		return
	}
	usage, err := j.Usage()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to determine disk usage: %s\n", err)
		return
	}
	from, to, err := j.CutoffRealtime()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to determine disk usage: %s\n", err)
		return
	}

	doc := machineDocument{
		MachineID:          mid,
		BootID:             bid,
		Hostname:           hostname,
		OSPrettyName:       g.sys.OSPrettyName(),
		Virtualization:     g.sys.Virtualization(),
		Usage:              strconv.FormatUint(usage, 10),
		CutoffFromRealtime: strconv.FormatUint(from, 10),
		CutoffToRealtime:   strconv.FormatUint(to, 10),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		respondOOM(c)
		return
	}
	c.Data(http.StatusOK, "application/json", append(body, '\n'))
}
