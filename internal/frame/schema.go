package frame

// Schema names and encodings registered with every sink. The schema bodies
// are fixed JSON Schema literals; sinks ship them verbatim (the websocket
// server base64-encodes them for its advertise handshake).
const (
	LaserScanSchemaName  = "foxglove.LaserScan"
	PointCloudSchemaName = "foxglove.PointCloud"

	SchemaEncoding  = "jsonschema"
	MessageEncoding = "json"
	ContentType     = "application/json"
)

var timestampSchema = `{
      "type": "object",
      "properties": {
        "sec": { "type": "integer", "minimum": 0 },
        "nsec": { "type": "integer", "minimum": 0, "maximum": 999999999 }
      }
    }`

var poseSchema = `{
      "type": "object",
      "properties": {
        "position": {
          "type": "object",
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" },
            "z": { "type": "number" }
          }
        },
        "orientation": {
          "type": "object",
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" },
            "z": { "type": "number" },
            "w": { "type": "number" }
          }
        }
      }
    }`

// LaserScanSchema returns the JSON Schema for LaserScanFrame payloads.
func LaserScanSchema() []byte {
	return []byte(`{
  "title": "` + LaserScanSchemaName + `",
  "type": "object",
  "properties": {
    "timestamp": ` + timestampSchema + `,
    "frame_id": { "type": "string" },
    "pose": ` + poseSchema + `,
    "start_angle": { "type": "number" },
    "end_angle": { "type": "number" },
    "ranges": { "type": "array", "items": { "type": "number" } },
    "intensities": { "type": "array", "items": { "type": "number" } }
  }
}`)
}

// PointCloudSchema returns the JSON Schema for PointCloudFrame payloads.
func PointCloudSchema() []byte {
	return []byte(`{
  "title": "` + PointCloudSchemaName + `",
  "type": "object",
  "properties": {
    "timestamp": ` + timestampSchema + `,
    "frame_id": { "type": "string" },
    "pose": ` + poseSchema + `,
    "point_stride": { "type": "integer" },
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "type": "string" },
          "offset": { "type": "integer" },
          "type": { "type": "integer" }
        }
      }
    },
    "data": { "type": "string", "contentEncoding": "base64" }
  }
}`)
}
