// 版权所有 2024 RelayForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 streaming 提供流式转发场景下的背压流控原语，供顶层 streaming.Adapter
在 ExpandToStream 中把一次性响应重新切片为带背压的 token 流。

# 概述

在大语言模型的流式响应中，token 以高频增量方式到达，对缓冲效率和
流量控制提出了较高要求。本包围绕这一问题提供一组可组合的构建块：

  - 背压流控：在生产者速度超过消费者时自动施加反压。
  - 速率限制：基于令牌桶算法控制 token 消费速率。
  - 流多路复用：将单一源流扇出到多个消费者。

# 核心接口

  - BackpressureStream — 带高/低水位线的背压流，支持 Block、DropOldest、
    DropNewest、Error 四种丢弃策略；可选 StreamID 关联到具体请求。
  - StreamMultiplexer — 将一个 BackpressureStream 扇出给多个消费者。
  - RateLimiter — 令牌桶速率限制器，支持阻塞等待。

# 主要能力

  - 背压控制：通过 HighWaterMark / LowWaterMark 自动暂停与恢复生产者。
  - 可观测：BackpressureStream.Stats() 暴露 stream_id/produced/consumed/dropped 等指标。
  - 扇出：StreamMultiplexer 支持运行时动态添加消费者。
*/
package streaming
