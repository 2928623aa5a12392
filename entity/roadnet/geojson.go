package roadnet

import (
	"github.com/paulmach/orb/geojson"
)

// GeoJSON 导出路网几何
// 功能：节点导出为Point，路段导出为LineString，供前端或外部工具展示
// 参数：occupancy-路段ID到车辆数的映射，可为nil
func (n *Network) GeoJSON(occupancy map[int32]int32) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, node := range n.nodeList {
		f := geojson.NewFeature(node.Point)
		f.ID = node.ID
		f.Properties["kind"] = "node"
		f.Properties["id"] = node.ID
		f.Properties["x"] = node.X
		f.Properties["y"] = node.Y
		f.Properties["destination"] = node.Destination
		fc.Append(f)
	}
	for _, e := range n.edges {
		f := geojson.NewFeature(e.Geometry)
		f.Properties["kind"] = "edge"
		f.Properties["id"] = e.ID
		f.Properties["from"] = e.From
		f.Properties["to"] = e.To
		f.Properties["class"] = e.Class.String()
		f.Properties["capacity"] = e.Capacity
		f.Properties["length"] = e.Length
		if occupancy != nil {
			f.Properties["occupancy"] = occupancy[e.ID]
		}
		fc.Append(f)
	}
	return fc
}
